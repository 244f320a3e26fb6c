package resource

import (
	"time"

	"github.com/nsyszr/relay/pkg/relay"
)

type FrontendResource struct {
	UserID       string     `json:"userId"`
	Status       string     `json:"status"`
	ConnectionID string     `json:"connectionId,omitempty"`
	LastSeen     *time.Time `json:"lastSeen,omitempty"`
}

type FrontendListResource struct {
	Members []*FrontendResource `json:"members"`
}

func NewFrontend(m *relay.FrontendSession) (out *FrontendResource) {
	out = &FrontendResource{
		UserID:       m.UserID,
		Status:       string(m.Status),
		ConnectionID: m.ConnID,
	}

	if !m.LastSeen.IsZero() {
		out.LastSeen = &time.Time{}
		*out.LastSeen = m.LastSeen.Round(time.Second)
	}

	return // out
}

func NewFrontendList(m []relay.FrontendSession) (out *FrontendListResource) {
	out = &FrontendListResource{
		Members: make([]*FrontendResource, 0, len(m)),
	}

	for i := range m {
		out.Members = append(out.Members, NewFrontend(&m[i]))
	}

	return // out
}
