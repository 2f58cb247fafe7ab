// Package programs holds the registry of supported loyalty programs and the
// hostname lookup used to decide which heuristics apply to the active page.
package programs

import (
	"net/url"
	"regexp"
	"strings"

	"milesync/internal"
)

type Registry struct {
	programs []internal.Program
}

func Default() *Registry {
	return &Registry{programs: builtin()}
}

func New(programs []internal.Program) *Registry {
	out := make([]internal.Program, len(programs))
	copy(out, programs)
	return &Registry{programs: out}
}

func builtin() []internal.Program {
	return []internal.Program{
		{
			Name:     "LATAM Pass",
			Code:     "LATAM",
			Key:      "latam",
			Icon:     "✈️",
			MilesURL: "https://latampass.latam.com/pt_br/minha-conta",
			Hosts:    []string{"latampass.latam.com", "latam.com"},
			Rules: internal.ProgramRules{
				TargetSelector:    "#lb1-miles-amount",
				TargetBonus:       80,
				ContextPattern:    regexp.MustCompile(`(?i)latam pass|milhas latam`),
				ContextBonus:      30,
				LoggedInSelectors: []string{"#lb1-miles-amount", "[data-testid='user-menu']", ".user-name"},
			},
		},
		{
			Name:     "Smiles",
			Code:     "SMILES",
			Key:      "smiles",
			Icon:     "😊",
			MilesURL: "https://www.smiles.com.br/minha-conta",
			Hosts:    []string{"smiles.com.br"},
			Rules: internal.ProgramRules{
				ContextPattern:    regexp.MustCompile(`(?i)milhas smiles|saldo smiles|clube smiles`),
				ContextBonus:      20,
				LoggedInSelectors: []string{".user-info", ".member-number", "[class*='miles-balance']"},
			},
		},
		{
			Name:     "TudoAzul",
			Code:     "AZUL",
			Key:      "azul",
			Icon:     "💙",
			MilesURL: "https://www.voeazul.com.br/br/pt/programa-fidelidade/minha-conta",
			Hosts:    []string{"tudoazul.com", "voeazul.com.br"},
			Rules: internal.ProgramRules{
				ContextPattern:    regexp.MustCompile(`(?i)tudoazul|pontos azul`),
				ContextBonus:      20,
				LoggedInSelectors: []string{".user-points", "[class*='customer-name']", "#user-menu"},
			},
		},
		{
			Name:             "Livelo",
			Code:             "LIVELO",
			Key:              "livelo",
			Icon:             "💜",
			MilesURL:         "https://www.livelo.com.br/minha-conta",
			Hosts:            []string{"livelo.com.br"},
			RequiresClick:    true,
			ClickInstruction: "Clique no ícone do olho para exibir seu saldo",
			Rules: internal.ProgramRules{
				ContextPattern:    regexp.MustCompile(`(?i)pontos livelo|saldo de pontos`),
				ContextBonus:      20,
				LoggedInSelectors: []string{"[class*='header-user']", ".points-balance", "#user-points"},
			},
		},
	}
}

func (r *Registry) All() []internal.Program {
	out := make([]internal.Program, len(r.programs))
	copy(out, r.programs)
	return out
}

// Lookup returns the program whose host list matches rawURL's hostname, or
// nil when the site is not supported. Registry order decides ties.
func (r *Registry) Lookup(rawURL string) *internal.Program {
	host := hostname(rawURL)
	if host == "" {
		return nil
	}
	for i := range r.programs {
		for _, h := range r.programs[i].Hosts {
			if h != "" && strings.Contains(host, strings.ToLower(h)) {
				p := r.programs[i]
				return &p
			}
		}
	}
	return nil
}

func (r *Registry) ByKey(key string) *internal.Program {
	for i := range r.programs {
		if strings.EqualFold(r.programs[i].Key, key) {
			p := r.programs[i]
			return &p
		}
	}
	return nil
}

func (r *Registry) ByCode(code string) *internal.Program {
	for i := range r.programs {
		if strings.EqualFold(r.programs[i].Code, code) {
			p := r.programs[i]
			return &p
		}
	}
	return nil
}

func hostname(rawURL string) string {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return ""
	}
	if !strings.Contains(rawURL, "://") {
		rawURL = "https://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
