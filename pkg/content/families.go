// SPDX-License-Identifier: MPL-2.0

package content

import (
	"errors"
	"fmt"
)

// Optional integration files declaring entity families and event mapping.
const (
	CustomFamiliesFile = "integration_families.yaml"
	MappingRulesFile   = "integration_mapping_rules.yaml"
)

const (
	TransformToString        TransformFunc = "to_string"
	TransformToInteger       TransformFunc = "to_integer"
	TransformToDouble        TransformFunc = "to_double"
	TransformFromUnixTime    TransformFunc = "from_unix_time_string_or_long"
	TransformFromCustomDate  TransformFunc = "from_custom_date"
	TransformToBoolean       TransformFunc = "to_boolean"
	TransformExtractRegexp   TransformFunc = "extract_regexp"
	TransformExtractByGroup  TransformFunc = "extract_by_regex_with_group"
	TransformToIsCorrelation TransformFunc = "to_is_correlation"
	TransformToIPAddress     TransformFunc = "to_ip_address"
	TransformToListOfLongs   TransformFunc = "to_list_of_longs_seperated_comma"
	TransformSubstrByLength  TransformFunc = "substr_by_length"
	TransformSubstrByEndText TransformFunc = "substr_by_end_text"
	TransformFirstLines      TransformFunc = "first_lines"
	TransformJoinRawFields   TransformFunc = "join_raw_fields"
	TransformStaticValue     TransformFunc = "static_value"
	TransformExtractDomain   TransformFunc = "extract_domain_from_uri"
	TransformCleanURL        TransformFunc = "clean_url"
	CompareEqual             Comparison    = "equal"
	CompareContains          Comparison    = "contains"
	CompareStartsWith        Comparison    = "starts_with"
	CompareEndsWith          Comparison    = "ends_with"
	ExtractNone              ExtractFunc   = "none"
	ExtractRegex             ExtractFunc   = "regex"
	ExtractDelimiter         ExtractFunc   = "delimiter"
)

// ErrInvalidMappingCode is returned when a mapping rule enumeration value is
// not recognized.
var ErrInvalidMappingCode = errors.New("invalid mapping rule value")

var (
	transformCodes = map[TransformFunc]int{
		TransformToString:        0,
		TransformToInteger:       1,
		TransformToDouble:        2,
		TransformFromUnixTime:    3,
		TransformFromCustomDate:  4,
		TransformToBoolean:       5,
		TransformExtractRegexp:   7,
		TransformExtractByGroup:  15,
		TransformToIsCorrelation: 100,
		TransformToIPAddress:     101,
		TransformToListOfLongs:   102,
		TransformSubstrByLength:  103,
		TransformSubstrByEndText: 105,
		TransformFirstLines:      106,
		TransformJoinRawFields:   107,
		TransformStaticValue:     108,
		TransformExtractDomain:   109,
		TransformCleanURL:        110,
	}
	comparisonCodes = map[Comparison]int{
		CompareEqual:      0,
		CompareContains:   1,
		CompareStartsWith: 2,
		CompareEndsWith:   3,
	}
	extractCodes = map[ExtractFunc]int{
		ExtractNone:      0,
		ExtractRegex:     1,
		ExtractDelimiter: 2,
	}
)

type (
	// TransformFunc converts a raw event field before it is mapped.
	TransformFunc string

	// Comparison is how a raw data match term is compared.
	Comparison string

	// ExtractFunc extracts a value from a raw field.
	ExtractFunc string

	// InvalidMappingCodeError is returned when a mapping rule carries an
	// unknown enumeration value.
	InvalidMappingCodeError struct {
		Field string
		Value string
	}

	// CustomFamily is a visual entity family contributed by an integration.
	CustomFamily struct {
		Family      string       `yaml:"family"`
		Description string       `yaml:"description"`
		ImageBase64 string       `yaml:"image_base64,omitempty"`
		IsCustom    bool         `yaml:"is_custom"`
		Rules       []FamilyRule `yaml:"rules,omitempty"`
	}

	// FamilyRule relates source entities to destination entities.
	FamilyRule struct {
		PrimarySource        string `yaml:"primary_source"`
		SecondarySource      string `yaml:"secondary_source,omitempty"`
		ThirdSource          string `yaml:"third_source,omitempty"`
		FourthSource         string `yaml:"fourth_source,omitempty"`
		RelationType         string `yaml:"relation_type"`
		PrimaryDestination   string `yaml:"primary_destination"`
		SecondaryDestination string `yaml:"secondary_destination,omitempty"`
		ThirdDestination     string `yaml:"third_destination,omitempty"`
		FourthDestination    string `yaml:"fourth_destination,omitempty"`
		VisualFamily         string `yaml:"visual_family"`
	}

	// MappingRule maps a raw event field of a connector's events onto a
	// security event field. Empty enumeration values take their defaults.
	MappingRule struct {
		Source                 string        `yaml:"source"`
		Product                string        `yaml:"product,omitempty"`
		EventName              string        `yaml:"event_name,omitempty"`
		SecurityEventFieldName string        `yaml:"security_event_field_name"`
		Transformation         TransformFunc `yaml:"transformation_function,omitempty"`
		TransformationParam    string        `yaml:"transformation_function_param,omitempty"`
		PrimaryMatchTerm       string        `yaml:"raw_data_primary_field_match_term,omitempty"`
		PrimaryComparison      Comparison    `yaml:"raw_data_primary_field_comparison_type,omitempty"`
		SecondaryMatchTerm     string        `yaml:"raw_data_secondary_field_match_term,omitempty"`
		SecondaryComparison    Comparison    `yaml:"raw_data_secondary_field_comparison_type,omitempty"`
		ThirdMatchTerm         string        `yaml:"raw_data_third_field_match_term,omitempty"`
		ThirdComparison        Comparison    `yaml:"raw_data_third_field_comparison_type,omitempty"`
		IsArtifact             bool          `yaml:"is_artifact"`
		Extraction             ExtractFunc   `yaml:"extraction_function,omitempty"`
		ExtractionParam        string        `yaml:"extraction_function_param,omitempty"`
	}
)

// Error implements the error interface.
func (e *InvalidMappingCodeError) Error() string {
	return fmt.Sprintf("%s has unknown value %q", e.Field, e.Value)
}

// Unwrap returns ErrInvalidMappingCode for errors.Is() compatibility.
func (e *InvalidMappingCodeError) Unwrap() error { return ErrInvalidMappingCode }

// Normalized maps the empty value to TransformToString.
func (t TransformFunc) Normalized() TransformFunc {
	if t == "" {
		return TransformToString
	}
	return t
}

// Code returns the platform numeric code, or -1 when unknown.
func (t TransformFunc) Code() int { return codeOf(transformCodes, t.Normalized()) }

// Normalized maps the empty value to CompareEqual.
func (c Comparison) Normalized() Comparison {
	if c == "" {
		return CompareEqual
	}
	return c
}

// Code returns the platform numeric code, or -1 when unknown.
func (c Comparison) Code() int { return codeOf(comparisonCodes, c.Normalized()) }

// Normalized maps the empty value to ExtractNone.
func (e ExtractFunc) Normalized() ExtractFunc {
	if e == "" {
		return ExtractNone
	}
	return e
}

// Code returns the platform numeric code, or -1 when unknown.
func (e ExtractFunc) Code() int { return codeOf(extractCodes, e.Normalized()) }

// TransformFromCode resolves a platform numeric code.
func TransformFromCode(code int) (TransformFunc, bool) { return fromCode(transformCodes, code) }

// ComparisonFromCode resolves a platform numeric code.
func ComparisonFromCode(code int) (Comparison, bool) { return fromCode(comparisonCodes, code) }

// ExtractFromCode resolves a platform numeric code.
func ExtractFromCode(code int) (ExtractFunc, bool) { return fromCode(extractCodes, code) }

// Validate reports every enumeration value of the rule that has no code.
func (m MappingRule) Validate() []error {
	var errs []error
	if m.Transformation.Code() < 0 {
		errs = append(errs, &InvalidMappingCodeError{Field: "transformation_function", Value: string(m.Transformation)})
	}
	comparisons := []struct {
		field string
		value Comparison
	}{
		{"raw_data_primary_field_comparison_type", m.PrimaryComparison},
		{"raw_data_secondary_field_comparison_type", m.SecondaryComparison},
		{"raw_data_third_field_comparison_type", m.ThirdComparison},
	}
	for _, c := range comparisons {
		if c.value.Code() < 0 {
			errs = append(errs, &InvalidMappingCodeError{Field: c.field, Value: string(c.value)})
		}
	}
	if m.Extraction.Code() < 0 {
		errs = append(errs, &InvalidMappingCodeError{Field: "extraction_function", Value: string(m.Extraction)})
	}
	return errs
}

func codeOf[K comparable](codes map[K]int, k K) int {
	if c, ok := codes[k]; ok {
		return c
	}
	return -1
}

func fromCode[K comparable](codes map[K]int, code int) (K, bool) {
	for k, c := range codes {
		if c == code {
			return k, true
		}
	}
	var zero K
	return zero, false
}
