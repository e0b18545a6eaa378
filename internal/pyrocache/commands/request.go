package commands

import "github.com/samber/lo"

type Request struct {
	Name    string
	Args    []string
	Session *Session
	purge   []string
}

func NewRequest(name string, args []string, session *Session) *Request {
	return &Request{Name: name, Args: args, Session: session}
}

// Marks key as observed expired; it is removed once the command returns.
func (r *Request) Purge(key string) {
	r.purge = append(r.purge, key)
}

func (r *Request) PurgeKeys() []string {
	return lo.Uniq(r.purge)
}
