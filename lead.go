package main

import (
	"context"
	"fmt"

	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
)

type LeadFetcher interface {
	GetLead(ctx context.Context, leadID string) (*LeadRecord, error)
}

// ResolveLead fetches the lead named by leadID and seeds the form with it.
// Fields the lead does not carry keep their value from defaults. On success the
// lead id and sub-source are written into the store. On failure defaults are
// returned along with the error.
func ResolveLead(ctx context.Context, backend LeadFetcher, store *RegistrationStore, leadID string, defaults FormValues) (FormValues, error) {
	lead, err := backend.GetLead(ctx, leadID)
	if err != nil {
		return defaults, fmt.Errorf("resolving lead %s: %w", leadID, err)
	}

	form := defaults
	overlay(&form.FirstName, lead.FirstName)
	overlay(&form.LastName, lead.LastName)
	overlay(&form.Country, lead.Country)
	overlay(&form.CountryState, lead.CountryState)
	overlay(&form.Referral, lead.PromoID)

	if lead.ID != "" {
		store.SetLeadID(lead.ID.String())
	}
	if lead.SubSource != nil && *lead.SubSource != "" {
		store.SetSubSource(lead.SubSource)
	}

	log.WithFields(log.Fields{
		"leadId":    lead.ID,
		"subSource": lo.FromPtr(lead.SubSource),
	}).Debug("Resolved lead")

	return form, nil
}

func overlay(dst *string, value *string) {
	if value != nil && *value != "" {
		*dst = *value
	}
}
