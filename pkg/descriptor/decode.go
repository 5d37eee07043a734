package descriptor

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cuemby/gplmt/pkg/isodate"
	"github.com/cuemby/gplmt/pkg/planetlab"
	"github.com/cuemby/gplmt/pkg/types"
)

// Descriptor is the fully resolved experiment: every declared node and
// group, every named tasklist definition, and the ordered step list to
// run. Includes have already been merged and every run task has a
// name.
type Descriptor struct {
	Nodes     map[string]*types.Node
	Groups    map[string]types.Group
	Tasklists map[string]*types.TaskDef
	Steps     []types.StepNode
}

// LoadFile reads and decodes an experiment description file, resolving
// includes relative to its directory (spec.md §6: PlanetLab fetches
// happen here too, during declaration processing).
func LoadFile(path string) (*Descriptor, error) {
	doc, err := parseFile(path)
	if err != nil {
		return nil, err
	}

	establishNames(doc)

	if err := processIncludes(doc, path, nil); err != nil {
		return nil, err
	}

	return convert(doc)
}

func parseFile(path string) (*xmlDocument, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &types.SetupError{Message: "could not read experiment file", Cause: err}
	}
	defer f.Close()

	var doc xmlDocument
	if err := xml.NewDecoder(f).Decode(&doc); err != nil {
		return nil, &types.SetupError{Message: "could not parse experiment file " + path, Cause: err}
	}
	return &doc, nil
}

// anonCounter hands out _anon<N> names within one document. Each
// establishNames call starts its own counter at _anon0, so an included
// file's unnamed run tasks can receive names already assigned in the
// parent document.
type anonCounter struct{ n int }

func (c *anonCounter) next() string {
	name := fmt.Sprintf("_anon%d", c.n)
	c.n++
	return name
}

// establishNames assigns an auto-generated name to every unnamed run
// task, matching the original's establish_names pass.
func establishNames(doc *xmlDocument) {
	c := &anonCounter{}
	for i := range doc.Tasklists {
		walkTasks(doc.Tasklists[i].Tasks, c)
	}
}

func walkTasks(tasks []xmlTask, c *anonCounter) {
	for i := range tasks {
		if tasks[i].XMLName.Local == "run" && tasks[i].Name == "" {
			tasks[i].Name = c.next()
		}
		walkTasks(tasks[i].Children, c)
	}
}

// processIncludes resolves every <include file="..."/> step in
// document order, merging the referenced file's targets and tasklists
// into doc (with an optional name prefix) the way augment_experiment
// does, and detects cyclic includes via the visited-path memo.
func processIncludes(doc *xmlDocument, parentFile string, visited map[string]bool) error {
	if visited == nil {
		visited = map[string]bool{}
	}
	absParent, err := filepath.Abs(parentFile)
	if err == nil {
		visited[absParent] = true
	}

	var merged []xmlStep
	for _, step := range doc.StepsRoot.Children {
		if step.XMLName.Local != "include" {
			merged = append(merged, step)
			continue
		}
		if step.File == "" {
			return &types.SyntaxError{Message: "attribute 'file' missing in include"}
		}
		incPath := step.File
		if !filepath.IsAbs(incPath) {
			incPath = filepath.Join(filepath.Dir(parentFile), incPath)
		}
		incPath, err = filepath.Abs(incPath)
		if err != nil {
			return &types.SetupError{Message: "could not resolve include path", Cause: err}
		}
		if visited[incPath] {
			return &types.SyntaxError{Message: "recursive include detected: " + incPath}
		}

		extDoc, err := parseFile(incPath)
		if err != nil {
			return err
		}
		establishNames(extDoc)

		childVisited := make(map[string]bool, len(visited)+1)
		for k := range visited {
			childVisited[k] = true
		}
		if err := processIncludes(extDoc, incPath, childVisited); err != nil {
			return err
		}

		prefix := step.Prefix
		for _, t := range extDoc.Targets {
			if prefix != "" {
				t.Name = prefix + "." + t.Name
			}
			doc.Targets = append(doc.Targets, t)
		}
		for _, tl := range extDoc.Tasklists {
			if prefix != "" {
				tl.Name = prefix + "." + tl.Name
			}
			doc.Tasklists = append(doc.Tasklists, tl)
		}
		// Extension steps are intentionally discarded: an included
		// file contributes targets and tasklists only, matching
		// augment_experiment's warning that extension steps never run.
	}
	doc.StepsRoot.Children = merged
	return nil
}

// convert turns the raw, include-merged XML tree into the typed
// Descriptor pkg/engine consumes.
func convert(doc *xmlDocument) (*Descriptor, error) {
	d := &Descriptor{
		Nodes:     map[string]*types.Node{},
		Groups:    map[string]types.Group{},
		Tasklists: map[string]*types.TaskDef{},
	}

	for _, t := range doc.Targets {
		if err := convertTarget(d, t); err != nil {
			return nil, err
		}
	}

	for _, tl := range doc.Tasklists {
		def, err := convertTasklist(tl)
		if err != nil {
			return nil, err
		}
		d.Tasklists[def.Name] = def
	}

	steps, err := convertSteps(doc.StepsRoot.Children)
	if err != nil {
		return nil, err
	}
	d.Steps = steps

	return d, nil
}

func convertTarget(d *Descriptor, t xmlTarget) error {
	if t.Name == "" {
		return &types.SyntaxError{Message: "target needs name"}
	}
	switch t.Type {
	case "local":
		d.Nodes[t.Name] = &types.Node{Name: t.Name, Kind: types.NodeLocal, Env: convertExportEnv(t.ExportEnv)}
		return nil
	case "ssh":
		node, err := convertSSHTarget(t)
		if err != nil {
			return err
		}
		d.Nodes[t.Name] = node
		return nil
	case "group":
		return convertGroup(d, t)
	case "planetlab":
		return convertPlanetLab(d, t)
	case "":
		return &types.SyntaxError{Message: fmt.Sprintf("target %q needs type", t.Name)}
	default:
		return &types.SyntaxError{Message: fmt.Sprintf("unknown target type %q", t.Type)}
	}
}

func convertSSHTarget(t xmlTarget) (*types.Node, error) {
	if t.Host == "" {
		return nil, &types.SyntaxError{Message: fmt.Sprintf("ssh target %q requires host", t.Name)}
	}
	if t.User == "" {
		return nil, &types.SyntaxError{Message: fmt.Sprintf("ssh target %q requires user", t.Name)}
	}
	port := 22
	if t.Port != "" {
		p, err := strconv.Atoi(t.Port)
		if err != nil {
			return nil, &types.SyntaxError{Message: fmt.Sprintf("ssh target %q has invalid port %q", t.Name, t.Port)}
		}
		port = p
	}
	var extra []string
	if t.ExtraArgs != "" {
		extra = strings.Fields(t.ExtraArgs)
	}
	return &types.Node{
		Name:      t.Name,
		Kind:      types.NodeSSH,
		Host:      t.Host,
		User:      t.User,
		Port:      port,
		ExtraArgs: extra,
		Env:       convertExportEnv(t.ExportEnv),
	}, nil
}

func convertGroup(d *Descriptor, t xmlTarget) error {
	var members []string
	for _, m := range t.Members {
		if m.Ref != "" {
			members = append(members, m.Ref)
			continue
		}
		if m.Name == "" {
			return &types.SyntaxError{Message: "group member must have ref or name"}
		}
		if err := convertTarget(d, m); err != nil {
			return err
		}
		members = append(members, m.Name)
	}
	d.Groups[t.Name] = types.Group{Name: t.Name, Members: members}
	return nil
}

func convertPlanetLab(d *Descriptor, t xmlTarget) error {
	if t.APIURL == "" {
		return &types.SyntaxError{Message: "planetlab slice requires 'apiurl'"}
	}
	if t.SliceName == "" {
		return &types.SyntaxError{Message: "planetlab slice requires 'slicename'"}
	}
	if t.User == "" {
		return &types.SyntaxError{Message: "planetlab slice requires 'user'"}
	}
	groupName := t.Name
	if groupName == "" {
		groupName = t.SliceName
	}

	hostnames, err := planetlab.ResolveSliceHosts(t.APIURL, t.SliceName, t.User, t.Password)
	if err != nil {
		return &types.SetupError{Message: "PlanetLab API call failed", Cause: err}
	}

	var members []string
	for i, host := range hostnames {
		name := fmt.Sprintf("_pl_%s.%d", t.SliceName, i)
		d.Nodes[name] = &types.Node{
			Name: name,
			Kind: types.NodeSSH,
			Host: host,
			User: t.SliceName,
			Port: 22,
		}
		members = append(members, name)
	}
	d.Groups[groupName] = types.Group{Name: groupName, Members: members}
	return nil
}

func convertExportEnv(entries []xmlExportEnv) types.Env {
	if len(entries) == 0 {
		return nil
	}
	env := make(types.Env, len(entries))
	for _, e := range entries {
		if e.Var == "" {
			continue
		}
		value := e.Value
		if value == "" {
			if v, ok := os.LookupEnv(e.Var); ok {
				value = v
			}
		}
		env[e.Var] = value
	}
	return env
}

func convertTasklist(tl xmlTasklist) (*types.TaskDef, error) {
	if tl.Name == "" {
		return nil, &types.SyntaxError{Message: "tasklist needs name"}
	}
	def := &types.TaskDef{Name: tl.Name, Cleanup: tl.Cleanup}

	if tl.OnError != "" {
		scope, err := types.ParseScope(tl.OnError)
		if err != nil {
			return nil, err
		}
		def.OnError = scope
	}
	if tl.Timeout != "" {
		d, err := isodate.ParseDuration(tl.Timeout)
		if err != nil {
			return nil, &types.SyntaxError{Message: fmt.Sprintf("tasklist %q has invalid timeout: %v", tl.Name, err)}
		}
		def.Timeout = d
	}

	children, err := convertTasks(tl.Tasks)
	if err != nil {
		return nil, err
	}
	def.Children = children
	return def, nil
}

func convertTasks(tasks []xmlTask) ([]types.TaskNode, error) {
	nodes := make([]types.TaskNode, 0, len(tasks))
	for _, t := range tasks {
		n, err := convertTask(t)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

func convertTask(t xmlTask) (types.TaskNode, error) {
	disabled := strings.EqualFold(t.Enabled, "false")

	switch t.XMLName.Local {
	case "run":
		var expected *int
		if t.ExpectedStatus != "" {
			n, err := strconv.Atoi(t.ExpectedStatus)
			if err != nil {
				return nil, &types.SyntaxError{Message: fmt.Sprintf("run task %q has invalid expected-status %q", t.Name, t.ExpectedStatus)}
			}
			expected = &n
		}
		run := types.RunTask{
			Name:           t.Name,
			Command:        strings.TrimSpace(t.Command),
			ExpectedStatus: expected,
		}
		run.Disabled = disabled
		return run, nil

	case "get":
		if t.Source == "" || t.Destination == "" {
			return nil, &types.SyntaxError{Message: "get task requires source and destination"}
		}
		get := types.GetTask{Source: t.Source, Destination: t.Destination}
		get.Disabled = disabled
		return get, nil

	case "put":
		if t.Source == "" || t.Destination == "" {
			return nil, &types.SyntaxError{Message: "put task requires source and destination"}
		}
		put := types.PutTask{Source: t.Source, Destination: t.Destination, Keep: strings.EqualFold(t.Keep, "true")}
		put.Disabled = disabled
		return put, nil

	case "seq", "sequence":
		children, err := convertTasks(t.Children)
		if err != nil {
			return nil, err
		}
		seq := types.SeqTask{Children: children}
		seq.Disabled = disabled
		return seq, nil

	case "par", "parallel":
		children, err := convertTasks(t.Children)
		if err != nil {
			return nil, err
		}
		par := types.ParTask{Children: children}
		par.Disabled = disabled
		return par, nil

	case "call":
		if t.Tasklist == "" {
			return nil, &types.SyntaxError{Message: "no tasklist name in 'call'"}
		}
		call := types.CallTask{Tasklist: t.Tasklist}
		call.Disabled = disabled
		return call, nil

	case "fail":
		fail := types.FailTask{}
		fail.Disabled = disabled
		return fail, nil

	default:
		return nil, &types.SyntaxError{Message: fmt.Sprintf("invalid task %q", t.XMLName.Local)}
	}
}
