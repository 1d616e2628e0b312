// Command warden manages node reservations and conductor registrations
// from the shell.
package main

func main() {
	Execute()
}
