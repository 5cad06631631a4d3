package quote

// ClientInfo is the free-form client record printed on a proposal.
// The zero value is the empty default.
type ClientInfo struct {
	Name    string
	Email   string
	Phone   string
	Address string
	Notes   string
}

// ClientPatch carries a partial client update. Nil fields are left untouched.
type ClientPatch struct {
	Name    *string
	Email   *string
	Phone   *string
	Address *string
	Notes   *string
}

// Apply returns a copy of c with every non-nil patch field replaced.
func (c ClientInfo) Apply(p ClientPatch) ClientInfo {
	if p.Name != nil {
		c.Name = *p.Name
	}
	if p.Email != nil {
		c.Email = *p.Email
	}
	if p.Phone != nil {
		c.Phone = *p.Phone
	}
	if p.Address != nil {
		c.Address = *p.Address
	}
	if p.Notes != nil {
		c.Notes = *p.Notes
	}
	return c
}

// IsEmpty reports whether every field is blank.
func (c ClientInfo) IsEmpty() bool {
	return c == ClientInfo{}
}
