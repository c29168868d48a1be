// Package aggregate reshapes per-country availability into a provider-centric
// view: one entry per provider listing every country it streams the title in.
package aggregate

import (
	"sort"

	"streamscout/internal/media"
)

// Regions names and orders countries for display.
type Regions interface {
	Name(code media.CountryCode) string
	Compare(a, b string) int
}

// Aggregate groups the flatrate offers of raw by provider. Entries are sorted
// by country count, descending; providers with equal counts keep the order in
// which they were first seen. Countries within an entry are sorted by display
// name. A nil regions uses the raw codes as names.
func Aggregate(raw media.RawAvailability, regions Regions) []media.ProviderEntry {
	entries := []media.ProviderEntry{}
	index := make(map[int]int)

	for _, co := range raw.Countries {
		if len(co.Flatrate) == 0 {
			continue
		}
		country := media.Country{Code: co.Code, Name: displayName(regions, co.Code)}

		for _, offer := range co.Flatrate {
			i, ok := index[offer.ProviderID]
			if !ok {
				i = len(entries)
				index[offer.ProviderID] = i
				entries = append(entries, media.ProviderEntry{
					ID:      offer.ProviderID,
					Name:    offer.ProviderName,
					LogoRef: offer.LogoRef,
				})
			}
			if !entries[i].Has(co.Code) {
				entries[i].Countries = append(entries[i].Countries, country)
			}
		}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return len(entries[i].Countries) > len(entries[j].Countries)
	})

	for i := range entries {
		sortCountries(entries[i].Countries, regions)
	}
	return entries
}

// Pairs counts the distinct (country, provider) pairs in raw.
func Pairs(raw media.RawAvailability) int {
	type pair struct {
		code media.CountryCode
		id   int
	}
	seen := make(map[pair]bool)
	for _, co := range raw.Countries {
		for _, offer := range co.Flatrate {
			seen[pair{co.Code, offer.ProviderID}] = true
		}
	}
	return len(seen)
}

func displayName(regions Regions, code media.CountryCode) string {
	if regions == nil {
		return string(code)
	}
	if name := regions.Name(code); name != "" {
		return name
	}
	return string(code)
}

func sortCountries(countries []media.Country, regions Regions) {
	sort.SliceStable(countries, func(i, j int) bool {
		a, b := countries[i], countries[j]
		if regions != nil {
			if c := regions.Compare(a.Name, b.Name); c != 0 {
				return c < 0
			}
		} else if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.Code < b.Code
	})
}
