// Package nut07 contains structs for the spendable check
// defined in [NUT-07]
//
// [NUT-07]: https://github.com/cashubtc/nuts/blob/main/07.md
package nut07

import (
	"encoding/json"
	"errors"
)

type State int

const (
	Unspent State = iota
	Pending
	Spent
	Unknown
)

func (state State) String() string {
	switch state {
	case Unspent:
		return "UNSPENT"
	case Pending:
		return "PENDING"
	case Spent:
		return "SPENT"
	default:
		return "unknown"
	}
}

func StringToState(state string) State {
	switch state {
	case "UNSPENT":
		return Unspent
	case "PENDING":
		return Pending
	case "SPENT":
		return Spent
	}
	return Unknown
}

type PostCheckStateRequest struct {
	Secrets []string `json:"secrets"`
}

type PostCheckStateResponse struct {
	States []ProofState `json:"states"`
}

type ProofState struct {
	Secret string `json:"secret"`
	State  State  `json:"state"`
}

func (state ProofState) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Secret string `json:"secret"`
		State  string `json:"state"`
	}{
		Secret: state.Secret,
		State:  state.State.String(),
	})
}

func (state *ProofState) UnmarshalJSON(data []byte) error {
	var proofString struct {
		Secret string `json:"secret"`
		State  string `json:"state"`
	}

	if err := json.Unmarshal(data, &proofString); err != nil {
		return err
	}

	state.Secret = proofString.Secret
	stateVal := StringToState(proofString.State)
	if stateVal == Unknown {
		return errors.New("invalid state")
	}
	state.State = stateVal

	return nil
}
