package domain

import "time"

const (
	BCOSpecVersion = "https://w3id.org/ieee/ieee-2791-schema/2791object.json"
	BCOTimeFormat  = "2006-01-02T15:04:05.000000"
)

// BCOTime formats t the way IEEE-2791 documents carry timestamps: UTC with
// millisecond precision padded to six fractional digits.
func BCOTime(t time.Time) string {
	return t.UTC().Truncate(time.Millisecond).Format(BCOTimeFormat)
}

// BCO is an IEEE-2791 BioCompute Object. ETag is computed over BaseBCO only.
type BCO struct {
	ObjectID    string `json:"object_id"`
	SpecVersion string `json:"spec_version"`
	ETag        string `json:"etag"`
	BaseBCO
}

type BaseBCO struct {
	ProvenanceDomain  ProvenanceDomain  `json:"provenance_domain"`
	UsabilityDomain   []string          `json:"usability_domain"`
	DescriptionDomain DescriptionDomain `json:"description_domain"`
	ExecutionDomain   ExecutionDomain   `json:"execution_domain"`
	ParametricDomain  []Parameter       `json:"parametric_domain"`
	IODomain          IODomain          `json:"io_domain"`
}

type ProvenanceDomain struct {
	Name         string        `json:"name"`
	Version      string        `json:"version"`
	License      string        `json:"license"`
	DerivedFrom  string        `json:"derived_from,omitempty"`
	Created      string        `json:"created"`
	Modified     string        `json:"modified"`
	Contributors []Contributor `json:"contributors"`
	Review       []Review      `json:"review"`
	Embargo      Embargo       `json:"embargo"`
}

type Contributor struct {
	Name         string   `json:"name"`
	Affiliation  string   `json:"affiliation,omitempty"`
	Email        string   `json:"email,omitempty"`
	ORCID        string   `json:"orcid,omitempty"`
	Contribution []string `json:"contribution"`
}

type Review struct {
	Status          string      `json:"status"`
	ReviewerComment string      `json:"reviewer_comment,omitempty"`
	Date            string      `json:"date,omitempty"`
	Reviewer        Contributor `json:"reviewer"`
}

type Embargo struct {
	StartTime string `json:"start_time,omitempty"`
	EndTime   string `json:"end_time,omitempty"`
}

type DescriptionDomain struct {
	Keywords      []string       `json:"keywords"`
	Platform      []string       `json:"platform"`
	PipelineSteps []PipelineStep `json:"pipeline_steps"`
}

type PipelineStep struct {
	StepNumber   int            `json:"step_number"`
	Name         string         `json:"name"`
	Description  string         `json:"description"`
	Version      string         `json:"version,omitempty"`
	Prerequisite []Prerequisite `json:"prerequisite"`
	InputList    []URI          `json:"input_list"`
	OutputList   []URI          `json:"output_list"`
}

type Prerequisite struct {
	Name string `json:"name"`
	URI  URI    `json:"uri"`
}

type URI struct {
	Filename     string `json:"filename,omitempty" yaml:"filename,omitempty" mapstructure:"filename"`
	URI          string `json:"uri" yaml:"uri" mapstructure:"uri"`
	AccessTime   string `json:"access_time,omitempty" yaml:"access_time,omitempty" mapstructure:"access_time"`
	SHA1Checksum string `json:"sha1_checksum,omitempty" yaml:"sha1_checksum,omitempty" mapstructure:"sha1_checksum"`
}

type ExecutionDomain struct {
	Script                []Script               `json:"script"`
	ScriptDriver          string                 `json:"script_driver"`
	SoftwarePrerequisites []SoftwarePrerequisite `json:"software_prerequisites"`
	ExternalDataEndpoints []DataEndpoint         `json:"external_data_endpoints"`
	EnvironmentVariables  map[string]string      `json:"environment_variables"`
}

type Script struct {
	URI URI `json:"uri"`
}

type SoftwarePrerequisite struct {
	Name    string `json:"name" yaml:"name" mapstructure:"name"`
	Version string `json:"version" yaml:"version" mapstructure:"version"`
	URI     URI    `json:"uri" yaml:"uri" mapstructure:"uri"`
}

type DataEndpoint struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

type Parameter struct {
	Param string `json:"param"`
	Value string `json:"value"`
	Step  string `json:"step"`
}

type IODomain struct {
	InputSubdomain  []InputSubdomain  `json:"input_subdomain"`
	OutputSubdomain []OutputSubdomain `json:"output_subdomain"`
}

type InputSubdomain struct {
	URI URI `json:"uri"`
}

type OutputSubdomain struct {
	MediaType string `json:"mediatype"`
	URI       URI    `json:"uri"`
}
