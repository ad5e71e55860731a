// Package anglefix keeps a player's view orientation through teleport volumes on
// Dragonfly servers.
//
// When a player enters a teleport volume, their view angles are captured. When
// they leave it, the angles are restored one tick later, after the teleport has
// overwritten them. Volumes that use landmark angles are left alone, since their
// destination already decides the orientation. A map allow-list loaded from a
// config file limits the fix to specific worlds.
//
// # Quick Start
//
//	pl := anglefix.NewBuilder().
//	    ConfigPath("config/anglefix.json").
//	    Watch().
//	    Volume(srv.World(), &anglefix.Volume{
//	        Name:        "spawn_exit",
//	        Box:         cube.Box(10, 64, 10, 12, 67, 12),
//	        Destination: mgl64.Vec3{100, 64, 100},
//	    }).
//	    Init(ctx)
//	defer pl.Shutdown()
//
//	for p := range srv.Accept() {
//	    sess, err := pl.NewSession(p)
//	    if err != nil {
//	        p.Disconnect("failed to initialize session")
//	        continue
//	    }
//	    p.Handle(pl.NewHandler(sess))
//	}
//
// # Config
//
// The config file lists the worlds the fix is active on. An empty list enables it
// on every world. A missing file is created with an example entry:
//
//	{
//	  "TargetMaps": [
//	    "surf_reprise"
//	  ]
//	}
//
// # Other hosts
//
// Fix, AngleCache, MapFilter and Scheduler do not depend on Dragonfly. Hosts with
// their own entity system implement Pawn, Controller and Trigger and call
// Fix.OnStartTouch and Fix.OnEndTouch from their trigger notifications.
package anglefix

// Version is the anglefix version.
const Version = "1.1.0"
