package descriptor

import "encoding/xml"

// The xmlDocument/xmlTarget/... structs below mirror the on-disk
// element shapes exactly, attribute for attribute, so decode.go can
// work from Go values instead of re-walking an XML token stream. They
// are never exposed outside this package; decode.go converts them into
// the types.* tree.

type xmlDocument struct {
	XMLName   xml.Name      `xml:"experiment"`
	Targets   []xmlTarget   `xml:"targets>target"`
	Tasklists []xmlTasklist `xml:"tasklists>tasklist"`
	StepsRoot xmlStepsRoot  `xml:"steps"`
}

// xmlStepsRoot captures the <steps> element's direct children in
// document order regardless of tag (step/synchronize/register-teardown
// /loop/include); decode.go dispatches on XMLName.Local.
type xmlStepsRoot struct {
	Children []xmlStep `xml:",any"`
}

type xmlExportEnv struct {
	Var   string `xml:"var,attr"`
	Value string `xml:"value,attr"`
}

type xmlTarget struct {
	Type string `xml:"type,attr"`
	Name string `xml:"name,attr"`
	Ref  string `xml:"ref,attr"`

	Host      string `xml:"host"`
	User      string `xml:"user"`
	Port      string `xml:"port"`
	ExtraArgs string `xml:"extra-args"`

	APIURL    string `xml:"apiurl"`
	SliceName string `xml:"slicename"`
	Password  string `xml:"password"`

	ExportEnv []xmlExportEnv `xml:"export-env"`
	Members   []xmlTarget    `xml:"target"`
}

type xmlTasklist struct {
	Name    string    `xml:"name,attr"`
	OnError string    `xml:"on-error,attr"`
	Timeout string    `xml:"timeout,attr"`
	Cleanup string    `xml:"cleanup,attr"`
	Tasks   []xmlTask `xml:",any"`
}

// xmlTask covers every task element tag (run, get, put, seq/sequence,
// par/parallel, call, fail) in one struct; decode.go dispatches on
// XMLName.Local the way the original's _run_task tag switch does.
type xmlTask struct {
	XMLName        xml.Name
	Name           string    `xml:"name,attr"`
	Enabled        string    `xml:"enabled,attr"`
	ExpectedStatus string    `xml:"expected-status,attr"`
	Keep           string    `xml:"keep,attr"`
	Tasklist       string    `xml:"tasklist,attr"`
	Source         string    `xml:"source"`
	Destination    string    `xml:"destination"`
	Children       []xmlTask `xml:",any"`
	Command        string    `xml:",chardata"`
}

type xmlStep struct {
	XMLName xml.Name
	Targets string         `xml:"targets,attr"`
	Tasklist string        `xml:"tasklist,attr"`
	Background string      `xml:"background,attr"`
	StartRelative string   `xml:"start_relative,attr"`
	StartAbsolute string   `xml:"start_absolute,attr"`
	StopRelative string    `xml:"stop_relative,attr"`
	StopAbsolute string    `xml:"stop_absolute,attr"`
	Repeat  string         `xml:"repeat,attr"`
	Duration string        `xml:"duration,attr"`
	Until   string         `xml:"until,attr"`
	List    string         `xml:"list,attr"`
	Param   string         `xml:"param,attr"`
	File    string         `xml:"file,attr"`
	Prefix  string         `xml:"prefix,attr"`
	ExportEnv []xmlExportEnv `xml:"export-env"`
	Children  []xmlStep      `xml:",any"`
}
