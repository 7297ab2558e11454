package integration

import (
	"fmt"
	"sync/atomic"
)

var userSeq atomic.Int64

// TestCredentials is a unique identity for one test.
type TestCredentials struct {
	Email    string
	Username string
	Password string
}

// UniqueCredentials returns credentials that will not collide with any
// other test in the run, even across parallel tests.
func UniqueCredentials() TestCredentials {
	n := userSeq.Add(1)
	return TestCredentials{
		Email:    fmt.Sprintf("user%d@example.com", n),
		Username: fmt.Sprintf("testuser%d", n),
		Password: fmt.Sprintf("Str0ng-Passw0rd-%d!", n),
	}
}
