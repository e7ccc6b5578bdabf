package channels

import (
	"errors"
	"fmt"
	"net/smtp"
)

// xoauth2Auth implements smtp.Auth for the XOAUTH2 mechanism used by
// Gmail/Outlook OAuth-authenticated SMTP (spec.md: email providers are
// authenticated via OAuth where the provider supports it).
type xoauth2Auth struct {
	username string
	token    string
}

func (a xoauth2Auth) Start(server *smtp.ServerInfo) (string, []byte, error) {
	resp := fmt.Sprintf("user=%s\x01auth=Bearer %s\x01\x01", a.username, a.token)
	return "XOAUTH2", []byte(resp), nil
}

func (a xoauth2Auth) Next(fromServer []byte, more bool) ([]byte, error) {
	if more {
		// The server sent a JSON error after the initial response; this is
		// treated as a hard failure rather than a multi-round challenge.
		return nil, errors.New("channels: xoauth2 rejected: " + string(fromServer))
	}
	return nil, nil
}
