package main

import (
	"fmt"
	"math/rand"
	"strings"
)

var (
	seedServices  = []string{"SEO", "Web Design", "Paid Ads", "Branding", "Content Marketing", "Analytics"}
	seedCompanies = []string{"Acme", "Globex", "Initech", "Umbrella", "Hooli", "Stark Industries"}
	seedChannels  = []string{"Email", "Phone", "Video call"}
	seedFiles     = []string{"brief.pdf", "logo.png", "brand-guide.pdf", "sitemap.xlsx"}
)

type seedSubmission struct {
	ID       string         `json:"id"`
	Services []string       `json:"services"`
	FormData map[string]any `json:"formData"`
}

// generateSubmissions は全ての値の種類 (文字列・数値・真偽値・配列・オブジェクト配列・ファイル) を含む送信を作る。
func generateSubmissions(rng *rand.Rand, count int) []seedSubmission {
	submissions := make([]seedSubmission, 0, count)
	for i := 0; i < count; i++ {
		company := seedCompanies[rng.Intn(len(seedCompanies))]
		formData := map[string]any{
			"companyName":      company,
			"website_url":      fmt.Sprintf("https://%s.example.com", strings.ToLower(strings.ReplaceAll(company, " ", "-"))),
			"monthlyBudget":    (rng.Intn(50) + 1) * 500,
			"hasExistingSite":  rng.Intn(2) == 0,
			"preferredChannel": pickUnique(rng, seedChannels, 1+rng.Intn(2)),
			"contacts":         generateContacts(rng, company),
			"notes":            nil,
		}
		if rng.Intn(3) == 0 {
			formData["attachment"] = map[string]any{
				"file": map[string]any{
					"name": seedFiles[rng.Intn(len(seedFiles))],
					"size": 1024 * (rng.Intn(900) + 1),
				},
			}
		}
		submissions = append(submissions, seedSubmission{
			ID:       fmt.Sprintf("seed-%06d", rng.Intn(1_000_000)),
			Services: pickUnique(rng, seedServices, 1+rng.Intn(3)),
			FormData: formData,
		})
	}
	return submissions
}

func generateContacts(rng *rand.Rand, company string) []map[string]any {
	domain := strings.ToLower(strings.ReplaceAll(company, " ", ""))
	contacts := make([]map[string]any, 0, 2)
	for i := 0; i < 1+rng.Intn(2); i++ {
		contacts = append(contacts, map[string]any{
			"name":  fmt.Sprintf("Contact %d", i+1),
			"email": fmt.Sprintf("contact%d@%s.example.com", i+1, domain),
		})
	}
	return contacts
}

func pickUnique(rng *rand.Rand, source []string, count int) []string {
	if count > len(source) {
		count = len(source)
	}
	picked := make([]string, 0, count)
	for _, idx := range rng.Perm(len(source))[:count] {
		picked = append(picked, source[idx])
	}
	return picked
}
