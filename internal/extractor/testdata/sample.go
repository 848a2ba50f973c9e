package sample

import (
	"fmt"
	"strings"
)

// Version is the application version.
const Version = "1.0.0"

// Base is a base struct.
type Base struct {
	ID int
}

// User is a complex struct.
type User struct {
	Base
	Name, Nickname string `json:"name"`
	Age            int    `json:"age"`
}

// Handler is an interface.
type Handler interface {
	fmt.Stringer
	Handle(ctx string, data interface{}) (int, error)
}

// MyFunc is a function.
func MyFunc(a int, b string) bool {
	MyFunction(strings.TrimSpace(b))
	return true
}

// MyFunction is another function.
func MyFunction(s string) {}

// MyMethod is a method.
func (u *User) MyMethod(msg string) {
	fmt.Println(msg)
}
