package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Geolocation is what the third-party lookups tell us about the host at start.
type Geolocation struct {
	IP          string
	CountryCode string
}

func getJSON(ctx context.Context, client *http.Client, link string, out any) error {
	if link == "" {
		return errors.New("lookup link is not configured")
	}
	req, err := BuildRequest(ctx, http.MethodGet, "", link, nil)
	if err != nil {
		return err
	}
	res, err := client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("%s answered %s", link, res.Status)
	}
	return json.NewDecoder(res.Body).Decode(out)
}

func getClientIPInfo(ctx context.Context, client *http.Client, link string) (string, error) {
	var body struct {
		IP string `json:"ip"`
	}
	if err := getJSON(ctx, client, link, &body); err != nil {
		return "", fmt.Errorf("failed to get client ip info: %w", err)
	}
	return body.IP, nil
}

func getClientCountryInformation(ctx context.Context, client *http.Client, link string) (string, error) {
	var body struct {
		CountryCode string `json:"countryCode"`
	}
	if err := getJSON(ctx, client, link, &body); err != nil {
		return "", fmt.Errorf("failed to get client country information: %w", err)
	}
	return strings.ToUpper(body.CountryCode), nil
}

// LocateClient runs both lookups concurrently. Each result is kept even when the
// other lookup fails; the first failure is returned.
func LocateClient(ctx context.Context, client *http.Client, ipLink, countryLink string) (Geolocation, error) {
	var (
		geo Geolocation
		g   errgroup.Group
	)

	g.Go(func() error {
		ip, err := getClientIPInfo(ctx, client, ipLink)
		geo.IP = ip
		return err
	})
	g.Go(func() error {
		country, err := getClientCountryInformation(ctx, client, countryLink)
		geo.CountryCode = country
		return err
	})

	err := g.Wait()
	log.WithFields(log.Fields{"ip": geo.IP, "country": geo.CountryCode}).Debug("Located client")
	return geo, err
}
