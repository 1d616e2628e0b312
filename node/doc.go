// Package node defines the managed node entity and its persistence
// contract.
//
// A node carries an optional reservation: the tag of the conductor that
// currently owns it. The empty string means unowned. Reservation changes go
// exclusively through [Store.SwapReservation], a compare-and-swap that
// reports how many nodes it touched; the reservation package builds the
// acquire and release protocol on top of it.
//
// Nodes are addressed by a [Selector], built from integer ids or names:
//
//	sel := node.ByNames("n1", "n2")
//	sel := node.ByIDs(4, 7)
//
// Listing accepts typed [Filter] values, a closed set of variants that every
// backend translates to its own query language.
package node
