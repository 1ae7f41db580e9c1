// Package domain contains the core concepts of the load harness:
// user fixtures, rooms, and per-session outcomes. No I/O lives here.
package domain

import "fmt"

// Credential identifies one simulated user. Immutable fixture input.
type Credential struct {
	Name     string
	Password string
}

// Token is the opaque credential issued at login. One token is handed
// to exactly one session driver and is never refreshed mid-run.
type Token string

// Fixtures generates the static user set of a run: user1/pass1 .. userN/passN.
func Fixtures(n int) []Credential {
	users := make([]Credential, 0, n)
	for i := 1; i <= n; i++ {
		users = append(users, Credential{
			Name:     fmt.Sprintf("user%d", i),
			Password: fmt.Sprintf("pass%d", i),
		})
	}
	return users
}
