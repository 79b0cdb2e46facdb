package domain

import (
	"fmt"
	"strconv"
	"time"
)

// ClientID identifies the client whose KYC status is resolved.
// It is supplied by callers and never validated beyond its type.
type ClientID int64

// String returns the decimal form of the ID.
func (c ClientID) String() string {
	return strconv.FormatInt(int64(c), 10)
}

// ParseClientID parses a decimal client ID.
func ParseClientID(value string) (ClientID, error) {
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid client ID %q: %w", value, err)
	}
	return ClientID(n), nil
}

// DocumentKind names an identity document whose verification is tracked upstream.
type DocumentKind string

const (
	DocumentPAN            DocumentKind = "pan"
	DocumentAadhaar        DocumentKind = "aadhaar"
	DocumentDrivingLicense DocumentKind = "driving_license"
	DocumentVoterID        DocumentKind = "voter_id"
	DocumentPassport       DocumentKind = "passport"
)

// RequiredDocuments are the kinds whose joint verification makes a client verified.
var RequiredDocuments = []DocumentKind{DocumentPAN, DocumentAadhaar}

// DocumentKinds lists every tracked kind, required kinds first.
var DocumentKinds = []DocumentKind{
	DocumentPAN,
	DocumentAadhaar,
	DocumentDrivingLicense,
	DocumentVoterID,
	DocumentPassport,
}

// TotalRequiredDocuments is len(RequiredDocuments).
const TotalRequiredDocuments = 2

// Date is a calendar date without time of day or location.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateFromParts builds a Date from a [year, month, day, ...] component sequence.
// Sequences shorter than three elements are rejected; extra elements
// (hour, minute, ...) are ignored.
func DateFromParts(parts []int) (Date, bool) {
	if len(parts) < 3 {
		return Date{}, false
	}
	return Date{Year: parts[0], Month: time.Month(parts[1]), Day: parts[2]}, true
}

// DateFromTime returns the calendar date of t in t's own location.
func DateFromTime(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// ParseDate parses a YYYY-MM-DD date.
func ParseDate(value string) (Date, error) {
	t, err := time.Parse(time.DateOnly, value)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", value, err)
	}
	return DateFromTime(t), nil
}

// String formats the date as YYYY-MM-DD.
func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// RawRecord is the upstream payload for one client. Every field is optional;
// a nil flag means the upstream did not report that document.
type RawRecord struct {
	PANVerified            *bool
	AadhaarVerified        *bool
	DrivingLicenseVerified *bool
	VoterIDVerified        *bool
	PassportVerified       *bool
	LastVerifiedOn         *Date
}

// Verified reports whether the record marks kind as verified.
// Absent flags and unknown kinds count as not verified.
func (r RawRecord) Verified(kind DocumentKind) bool {
	var flag *bool
	switch kind {
	case DocumentPAN:
		flag = r.PANVerified
	case DocumentAadhaar:
		flag = r.AadhaarVerified
	case DocumentDrivingLicense:
		flag = r.DrivingLicenseVerified
	case DocumentVoterID:
		flag = r.VoterIDVerified
	case DocumentPassport:
		flag = r.PassportVerified
	}
	return flag != nil && *flag
}
