// Package nut06 contains structs as defined in [NUT-06]
//
// [NUT-06]: https://github.com/cashubtc/nuts/blob/main/06.md
package nut06

type MintInfo struct {
	Name            string         `json:"name"`
	Pubkey          string         `json:"pubkey"`
	Version         string         `json:"version"`
	Description     string         `json:"description"`
	LongDescription string         `json:"description_long,omitempty"`
	Contact         []ContactInfo  `json:"contact,omitempty"`
	Motd            string         `json:"motd,omitempty"`
	Nuts            map[string]Nut `json:"nuts"`
}

type ContactInfo struct {
	Method string `json:"method"`
	Info   string `json:"info"`
}

type Nut struct {
	Supported bool `json:"supported"`
}
