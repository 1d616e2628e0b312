// Package redishook is a Warden extension that publishes reservation and
// liveness events to a Redis pub/sub channel, so operators and other
// conductors can follow node claims and conductor churn in real time.
//
// Each event is a JSON [Event] envelope published on one channel
// (default "warden:events"):
//
//	rdb := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	eng, err := engine.Build(w,
//	    engine.WithExtension(redishook.New(rdb,
//	        redishook.WithChannel("dc1:warden"),
//	        redishook.WithEvents(redishook.EventNodesReserved, redishook.EventNodesReleased),
//	    )),
//	)
//
// Subscribers decode the message with json.Unmarshal into an Event.
package redishook
