package syncjob

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"hotel_catalog/internal/domain"
)

// Rules decides which dump records enter the catalog.
type Rules struct {
	MinStars        int
	SkipClosed      bool
	PremiumChains   []string
	TargetCountries []string

	chains    map[string]struct{}
	countries map[string]struct{}
}

type rulesFile struct {
	MinStars        *int     `yaml:"min_stars"`
	SkipClosed      *bool    `yaml:"skip_closed"`
	PremiumChains   []string `yaml:"premium_chains"`
	TargetCountries []string `yaml:"target_countries"`
}

// LoadRules overlays the YAML file at path onto base. An empty path returns
// base unchanged.
func LoadRules(path string, base Rules) (Rules, error) {
	if path == "" {
		return base.compile(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Rules{}, fmt.Errorf("read rules: %w", err)
	}
	var f rulesFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return Rules{}, fmt.Errorf("parse rules %s: %w", path, err)
	}
	if f.MinStars != nil {
		base.MinStars = *f.MinStars
	}
	if f.SkipClosed != nil {
		base.SkipClosed = *f.SkipClosed
	}
	if len(f.PremiumChains) > 0 {
		base.PremiumChains = f.PremiumChains
	}
	if len(f.TargetCountries) > 0 {
		base.TargetCountries = f.TargetCountries
	}
	return base.compile(), nil
}

func (r Rules) compile() Rules {
	r.chains = make(map[string]struct{}, len(r.PremiumChains))
	for _, c := range r.PremiumChains {
		if c = strings.ToLower(strings.TrimSpace(c)); c != "" {
			r.chains[c] = struct{}{}
		}
	}
	r.countries = make(map[string]struct{}, len(r.TargetCountries))
	for _, c := range r.TargetCountries {
		if c = strings.ToUpper(strings.TrimSpace(c)); c != "" {
			r.countries[c] = struct{}{}
		}
	}
	return r
}

const (
	reasonClosed  = "closed"
	reasonPremium = "premium_chain"
	reasonCountry = "target_country"
	reasonStars   = "stars"
)

// Decide evaluates closed, premium chain, target country and star rating in
// that order; the first rule that applies wins and is returned as reason.
func (r Rules) Decide(h domain.CatalogHotel) (include bool, reason string) {
	if r.chains == nil {
		r = r.compile()
	}
	if r.SkipClosed && h.IsClosed {
		return false, reasonClosed
	}
	if _, ok := r.chains[strings.ToLower(strings.TrimSpace(h.Chain))]; ok && h.Chain != "" {
		return true, reasonPremium
	}
	if _, ok := r.countries[strings.ToUpper(h.Country)]; ok && h.Country != "" {
		return true, reasonCountry
	}
	return h.StarRating >= r.MinStars, reasonStars
}
