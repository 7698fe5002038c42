package model

import "time"

// TechnologyDetails are the fields extracted from a technology-transfer page
type TechnologyDetails struct {
	Title                 *string        `json:"title"`
	PostDate              *string        `json:"post_date"`
	Summary               *string        `json:"summary"`
	Abstract              *string        `json:"abstract"`
	Benefit               *string        `json:"benefit"`
	MarketApplication     *string        `json:"market_application"`
	TechnologyDescription *string        `json:"technology_description"`
	Publications          Publications   `json:"publications"`
	ImageURLs             []string       `json:"image_urls"`
	LicensingContacts     []Contact      `json:"licensing_contacts"`
	Researchers           []string       `json:"researchers"`
	Organizations         []Organization `json:"organizations"`
	CompaniesInterested   []string       `json:"companies_interested"`
	AdditionalData        map[string]any `json:"additional_data"`
	ExtractedURLs         []string       `json:"extracted_urls"`
}

// Publications groups publication text with its links
type Publications struct {
	Text *string  `json:"text"`
	URLs []string `json:"urls"`
}

// Contact is a licensing contact
type Contact struct {
	Name  string `json:"name,omitempty"`
	Phone string `json:"phone,omitempty"`
	Email string `json:"email,omitempty"`
}

// Organization is an owning institution
type Organization struct {
	Name    string `json:"name,omitempty"`
	LogoURL string `json:"logo_url,omitempty"`
}

// NewTechnologyDetails returns details with every list initialised
func NewTechnologyDetails() TechnologyDetails {
	return TechnologyDetails{
		Publications:        Publications{URLs: []string{}},
		ImageURLs:           []string{},
		LicensingContacts:   []Contact{},
		Researchers:         []string{},
		Organizations:       []Organization{},
		CompaniesInterested: []string{},
		AdditionalData:      map[string]any{},
		ExtractedURLs:       []string{},
	}
}

// Completeness is the filled fraction of title, abstract, researchers and licensing contacts
func (d TechnologyDetails) Completeness() float64 {
	filled := 0
	if d.Title != nil && *d.Title != "" {
		filled++
	}
	if d.Abstract != nil && *d.Abstract != "" {
		filled++
	}
	if len(d.Researchers) > 0 {
		filled++
	}
	if len(d.LicensingContacts) > 0 {
		filled++
	}
	return float64(filled) / 4
}

// ScrapeMethod records how a record's details were obtained
type ScrapeMethod string

const (
	ScrapeTraditional ScrapeMethod = "traditional"
	ScrapeSearchModel ScrapeMethod = "search_model"
	ScrapeFailed      ScrapeMethod = "failed"
)

// ObjectID mirrors the {"$oid": ...} identifier shape of the downstream store
type ObjectID struct {
	OID string `json:"$oid"`
}

// ScrapedRecord is one technology page after scraping
type ScrapedRecord struct {
	ID                ObjectID          `json:"_id"`
	SourceID          string            `json:"source_id"`
	URL               string            `json:"url"`
	Details           TechnologyDetails `json:"details"`
	Timestamp         time.Time         `json:"timestamp"`
	Model             string            `json:"model"`
	ScrapingMethod    ScrapeMethod      `json:"scraping_method"`
	CompletenessScore float64           `json:"completeness_score"`
	WebCitations      []string          `json:"web_citations"`
	LinkChecks        []LinkStatus      `json:"link_checks,omitempty"`
}

// LinkStatus is the result of checking one cited URL
type LinkStatus struct {
	URL          string     `json:"url"`
	StatusCode   int        `json:"status_code,omitempty"`
	IsAccessible bool       `json:"is_accessible"`
	IsDead       bool       `json:"is_dead"`
	RedirectURL  string     `json:"redirect_url,omitempty"`
	LastModified *time.Time `json:"last_modified,omitempty"`
	AgeDays      *int       `json:"age_days,omitempty"`
	IsStale      bool       `json:"is_stale"`
	Tier         Tier       `json:"tier"`
	Error        string     `json:"error,omitempty"`
}

// ScrapeOutput is the file written by the scrape command
type ScrapeOutput struct {
	ScrapedDate      time.Time       `json:"scraped_date"`
	TotalCount       int             `json:"total_count"`
	TraditionalCount int             `json:"traditional_count"`
	SearchModelCount int             `json:"search_model_count"`
	TotalCost        float64         `json:"total_cost"`
	Model            string          `json:"model"`
	IPs              []ScrapedRecord `json:"ips"`
}

// URLEntry is one entry of a scrape input file
type URLEntry struct {
	URL string `json:"url"`
	ID  string `json:"id,omitempty"`
}

// URLList is the scrape input file
type URLList struct {
	SourceID string     `json:"source_id"`
	URLs     []URLEntry `json:"urls"`
}
