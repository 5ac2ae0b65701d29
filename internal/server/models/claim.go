package models

// Claim is an authorization fact attached to a user. Type and Value are
// canonical names from the claim registry, e.g. {Receipt, Read}.
type Claim struct {
	Type  string `json:"claimType"`
	Value string `json:"claimValue"`
}

// String renders the claim as "Type:Value".
func (c Claim) String() string {
	return c.Type + ":" + c.Value
}
