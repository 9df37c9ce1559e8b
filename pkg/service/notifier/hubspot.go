package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/magpipe/recurra/pkg/domain/interfaces"
	"github.com/magpipe/recurra/pkg/domain/model"
	"github.com/magpipe/recurra/pkg/domain/types"
)

const (
	defaultHubSpotURL = "https://api.hubapi.com"

	// note-to-contact association defined by HubSpot
	noteToContactAssociationTypeID = 202
)

// HubSpot records alerts as CRM notes
type HubSpot struct {
	accessToken string
	baseURL     string
	client      *http.Client
}

var _ interfaces.Connector = &HubSpot{}

type HubSpotOption func(*HubSpot)

func WithHubSpotBaseURL(u string) HubSpotOption {
	return func(h *HubSpot) {
		h.baseURL = strings.TrimSuffix(u, "/")
	}
}

func WithHubSpotHTTPClient(c *http.Client) HubSpotOption {
	return func(h *HubSpot) {
		h.client = c
	}
}

func NewHubSpot(accessToken string, opts ...HubSpotOption) (*HubSpot, error) {
	if accessToken == "" {
		return nil, goerr.New("hubspot access token is required")
	}

	h := &HubSpot{
		accessToken: accessToken,
		baseURL:     defaultHubSpotURL,
		client:      defaultHTTPClient(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

type hubspotFilter struct {
	PropertyName string `json:"propertyName"`
	Operator     string `json:"operator"`
	Value        string `json:"value"`
}

type hubspotFilterGroup struct {
	Filters []hubspotFilter `json:"filters"`
}

type hubspotSearchRequest struct {
	FilterGroups []hubspotFilterGroup `json:"filterGroups"`
	Properties   []string             `json:"properties"`
	Limit        int                  `json:"limit"`
}

type hubspotSearchResponse struct {
	Results []struct {
		ID string `json:"id"`
	} `json:"results"`
}

type hubspotAssociationType struct {
	AssociationCategory string `json:"associationCategory"`
	AssociationTypeID   int    `json:"associationTypeId"`
}

type hubspotAssociation struct {
	To struct {
		ID string `json:"id"`
	} `json:"to"`
	Types []hubspotAssociationType `json:"types"`
}

type hubspotNote struct {
	Properties   map[string]string    `json:"properties"`
	Associations []hubspotAssociation `json:"associations,omitempty"`
}

func (h *HubSpot) Deliver(ctx context.Context, cfg model.ActionConfig, payload *model.AlertPayload) (bool, error) {
	if cfg.Type != types.ActionTypeHubSpot {
		return false, goerr.Wrap(model.ErrInvalidActionConfig, "hubspot config is missing")
	}

	note := hubspotNote{
		Properties: map[string]string{
			"hs_note_body": FormatPlain(payload),
			"hs_timestamp": strconv.FormatInt(payload.TriggeredAt.UnixMilli(), 10),
		},
	}

	if cfg.HubSpot != nil && cfg.HubSpot.ContactEmail != "" {
		contactID, err := h.findContact(ctx, cfg.HubSpot.ContactEmail)
		if err != nil {
			return false, err
		}
		if contactID != "" {
			assoc := hubspotAssociation{
				Types: []hubspotAssociationType{{
					AssociationCategory: "HUBSPOT_DEFINED",
					AssociationTypeID:   noteToContactAssociationTypeID,
				}},
			}
			assoc.To.ID = contactID
			note.Associations = []hubspotAssociation{assoc}
		}
	}

	if _, err := h.post(ctx, "/crm/v3/objects/notes", note); err != nil {
		return false, goerr.Wrap(err, "failed to create hubspot note")
	}
	return true, nil
}

// findContact returns the ID of the contact with email, or "" when none exists
func (h *HubSpot) findContact(ctx context.Context, email string) (string, error) {
	body, err := h.post(ctx, "/crm/v3/objects/contacts/search", hubspotSearchRequest{
		FilterGroups: []hubspotFilterGroup{{
			Filters: []hubspotFilter{{PropertyName: "email", Operator: "EQ", Value: email}},
		}},
		Properties: []string{"email"},
		Limit:      1,
	})
	if err != nil {
		return "", goerr.Wrap(err, "failed to search hubspot contact", goerr.V("email", email))
	}

	var resp hubspotSearchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", goerr.Wrap(err, "failed to decode hubspot search response")
	}
	if len(resp.Results) == 0 {
		return "", nil
	}
	return resp.Results[0].ID, nil
}

func (h *HubSpot) post(ctx context.Context, path string, v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to marshal hubspot request", goerr.V("path", path))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to build hubspot request", goerr.V("path", path))
	}
	req.Header.Set("Authorization", "Bearer "+h.accessToken)
	req.Header.Set("Content-Type", "application/json")

	return do(ctx, h.client, req)
}
