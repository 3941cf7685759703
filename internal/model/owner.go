package model

import "strings"

// Owner identifies the person who stored the goods. The engine treats the
// fields as opaque.
type Owner struct {
	FirstName string
	LastName  string
	CNIC      string
	Phone     string
	Address   string
}

func (o Owner) FullName() string {
	return strings.TrimSpace(o.FirstName + " " + o.LastName)
}
