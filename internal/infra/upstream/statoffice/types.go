package statoffice

import (
	"encoding/xml"
	"time"

	"github.com/vietddude/regfetch/internal/core/domain"
	"github.com/vietddude/regfetch/internal/core/fault"
)

// Protocol action names of the stat-office gateway.
const (
	actionLogin    = "Zaloguj"
	actionLogout   = "Wyloguj"
	actionSearch   = "DaneSzukajPodmioty"
	actionFullData = "DanePobierzPelnyRaport"
)

// ReportName selects which detailed report the gateway renders.
type ReportName string

const (
	// ReportLegal is the detailed report for legal entities. It carries the
	// court registry number when the entity is registered there.
	ReportLegal ReportName = "BIR11OsPrawna"

	// ReportGeneric is the generic detail report used for individual
	// entrepreneurs, agriculture and professional-services entities.
	ReportGeneric ReportName = "BIR11OsFizycznaDaneOgolne"
)

// request is the XML envelope sent to the gateway endpoint.
type request struct {
	XMLName xml.Name `xml:"request"`
	Action  string   `xml:"action"`
	Key     string   `xml:"klucz,omitempty"`
	Nip     string   `xml:"nip,omitempty"`
	Regon   string   `xml:"regon,omitempty"`
	Report  string   `xml:"nazwaRaportu,omitempty"`
}

// envelope is the XML envelope every gateway response arrives in.
type envelope struct {
	XMLName      xml.Name `xml:"root"`
	Sid          string   `xml:"sid"`
	ErrorCode    string   `xml:"ErrorCode"`
	ErrorMessage string   `xml:"ErrorMessage"`
	Data         searchData `xml:"dane"`
}

// searchData is the union of fields the search and report payloads use.
type searchData struct {
	Regon       string `xml:"Regon"`
	Nip         string `xml:"Nip"`
	Name        string `xml:"Nazwa"`
	Type        string `xml:"Typ"`
	SilosID     string `xml:"SilosID"`
	EndDate     string `xml:"DataZakonczeniaDzialalnosci"`
	LegalForm   string `xml:"FormaPrawna"`
	Street      string `xml:"Ulica"`
	City        string `xml:"Miejscowosc"`
	PostalCode  string `xml:"KodPocztowy"`
	CourtNumber string `xml:"NumerWRejestrzeEwidencji"`
}

// Report is the typed detailed-report payload, validated before use.
type Report struct {
	Regon       domain.RegistryID
	Nip         domain.TaxID
	Name        string
	LegalForm   string
	Street      string
	City        string
	PostalCode  string
	CourtNumber string
	EndDate     *time.Time
}

// Address renders the report address as a single line, empty when unknown.
func (r *Report) Address() string {
	switch {
	case r.Street == "" && r.City == "":
		return ""
	case r.Street == "":
		return r.PostalCode + " " + r.City
	default:
		return r.Street + ", " + r.PostalCode + " " + r.City
	}
}

// silosCategories maps the gateway's silo identifier to an entity category.
var silosCategories = map[string]domain.EntityCategory{
	"1": domain.CategoryIndividualEntrep,
	"2": domain.CategoryAgriculture,
	"3": domain.CategoryProfessionalServices,
	"4": domain.CategoryDeregistered,
	"6": domain.CategoryLegalEntity,
}

// errorCodes maps gateway error codes to taxonomy codes.
var errorCodes = map[string]fault.Code{
	"1": fault.CodeSessionInvalid,
	"2": fault.CodeSessionExpired,
	"4": fault.CodeNotFound,
	"7": fault.CodeAuthFailed,
}

func parseDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
