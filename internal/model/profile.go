package model

import (
	"strconv"
	"strings"

	"github.com/vanboompow/efb-212-sub001/internal/efberr"
)

// CertificateType is a pilot certificate grade.
type CertificateType string

const (
	CertificateStudent      CertificateType = "student"
	CertificateSport        CertificateType = "sport"
	CertificateRecreational CertificateType = "recreational"
	CertificatePrivate      CertificateType = "private"
	CertificateCommercial   CertificateType = "commercial"
	CertificateATP          CertificateType = "atp"
)

var certificateTypes = map[string]CertificateType{
	"student":                 CertificateStudent,
	"sport":                   CertificateSport,
	"recreational":            CertificateRecreational,
	"private":                 CertificatePrivate,
	"commercial":              CertificateCommercial,
	"atp":                     CertificateATP,
	"airline transport":       CertificateATP,
	"airline transport pilot": CertificateATP,
}

// ParseCertificateType maps a stored string onto the closed set. Unknown
// values are InvalidInput, never a default grade.
func ParseCertificateType(s string) (CertificateType, error) {
	if c, ok := certificateTypes[strings.ToLower(strings.TrimSpace(s))]; ok {
		return c, nil
	}
	return "", efberr.New(efberr.InvalidInput, "model: certificate type", "unknown certificate type "+quote(s))
}

// MedicalClass is an FAA medical certificate class.
type MedicalClass string

const (
	MedicalFirst    MedicalClass = "first"
	MedicalSecond   MedicalClass = "second"
	MedicalThird    MedicalClass = "third"
	MedicalBasicMed MedicalClass = "basicmed"
)

// ParseMedicalClass accepts "first", "1st", "class 1" style spellings and BasicMed.
func ParseMedicalClass(s string) (MedicalClass, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.TrimPrefix(norm, "class ")
	norm = strings.TrimSuffix(norm, " class")
	switch norm {
	case "first", "1st", "1":
		return MedicalFirst, nil
	case "second", "2nd", "2":
		return MedicalSecond, nil
	case "third", "3rd", "3":
		return MedicalThird, nil
	case "basicmed", "basic med", "basic":
		return MedicalBasicMed, nil
	default:
		return "", efberr.New(efberr.InvalidInput, "model: medical class", "unknown medical class "+quote(s))
	}
}

func upper(s string) string { return strings.ToUpper(strings.TrimSpace(s)) }

func quote(s string) string { return strconv.Quote(s) }
