package session

import "strings"

// Contact is the contact information resolved for one session.
type Contact struct {
	CURP  string
	Email string
	Phone string
}

// resolveContact scans rows in input order. Each candidate list is consulted
// field by field; the first field holding a value in any row wins.
func resolveContact(sessionID string, rows []*Row) Contact {
	c := Contact{
		CURP:  firstValue(rows, curpFields),
		Email: firstValue(rows, emailFields),
		Phone: firstValue(rows, phoneFields),
	}

	if c.Phone == "" && strings.HasPrefix(sessionID, whatsAppMarker) {
		c.Phone = strings.TrimPrefix(sessionID, whatsAppMarker)
	}

	return c
}

func firstValue(rows []*Row, candidates []string) string {
	for _, name := range candidates {
		for _, r := range rows {
			if v, ok := r.Fields.String(name); ok {
				return v
			}
		}
	}
	return ""
}
