// Package machine decodes Packer's machine-readable output stream. See doc.go for the format.
package machine

// UnknownVersion is reported when a version run ends without a version message.
const UnknownVersion = "unknown"

// TargetError is one error message attributed to a target, or to the whole
// run when Target is empty.
type TargetError struct {
	Target  string
	Message string
}

func newResult(exitStatus int, combined string, decodeErrors []DecodeError, ok bool) Result {
	return Result{
		ExitStatus:   exitStatus,
		Success:      ok && exitStatus == 0,
		Raw:          combined,
		DecodeErrors: decodeErrors,
	}
}

// BuildOutput is the result of a build run: the artifacts each builder
// produced, in arrival order, plus any errors attributed to builders.
type BuildOutput struct {
	Result
	Targets   []string              // first-seen order
	Artifacts map[string][]Artifact // target -> artifacts
	Errors    []TargetError
	Log       []string // ui output, surfaced for diagnostics
}

// TargetSucceeded reports whether a single builder finished without an error
// message. The overall exit status still gates Success on the Output.
func (o *BuildOutput) TargetSucceeded(name string) bool {
	for _, e := range o.Errors {
		if e.Target == name {
			return false
		}
	}
	return true
}

// BuildAggregator folds artifact and error messages of a build run.
type BuildAggregator struct {
	targets   []string
	artifacts map[string][]Artifact
	errors    []TargetError
	log       []string
}

// NewBuildAggregator returns an aggregator for a build invocation.
func NewBuildAggregator() *BuildAggregator {
	return &BuildAggregator{artifacts: make(map[string][]Artifact)}
}

func (a *BuildAggregator) Accept(msg Message) {
	switch p := msg.Payload.(type) {
	case Artifact:
		if _, seen := a.artifacts[msg.Target]; !seen {
			a.targets = append(a.targets, msg.Target)
		}
		a.artifacts[msg.Target] = append(a.artifacts[msg.Target], p)
	case ErrorMessage:
		a.errors = append(a.errors, TargetError{Target: msg.Target, Message: p.Text})
	case UI:
		if p.Category == "error" {
			a.errors = append(a.errors, TargetError{Target: msg.Target, Message: p.Text})
			return
		}
		a.log = append(a.log, p.Text)
	}
}

func (a *BuildAggregator) Finalize(exitStatus int, combined string, decodeErrors []DecodeError) Output {
	return &BuildOutput{
		Result:    newResult(exitStatus, combined, decodeErrors, len(a.errors) == 0),
		Targets:   a.targets,
		Artifacts: a.artifacts,
		Errors:    a.errors,
		Log:       a.log,
	}
}

// ValidateOutput is the result of a validate run.
type ValidateOutput struct {
	Result
	Errors []TargetError
}

// ValidateAggregator collects the error messages of a validate run.
type ValidateAggregator struct {
	errors []TargetError
}

// NewValidateAggregator returns an aggregator for a validate invocation.
func NewValidateAggregator() *ValidateAggregator {
	return &ValidateAggregator{}
}

func (a *ValidateAggregator) Accept(msg Message) {
	switch p := msg.Payload.(type) {
	case ErrorMessage:
		a.errors = append(a.errors, TargetError{Target: msg.Target, Message: p.Text})
	case UI:
		if p.Category == "error" {
			a.errors = append(a.errors, TargetError{Target: msg.Target, Message: p.Text})
		}
	}
}

func (a *ValidateAggregator) Finalize(exitStatus int, combined string, decodeErrors []DecodeError) Output {
	return &ValidateOutput{
		Result: newResult(exitStatus, combined, decodeErrors, len(a.errors) == 0),
		Errors: a.errors,
	}
}

// PushOutput is the result of a push run: status plus surfaced error text,
// no structured payload.
type PushOutput struct {
	Result
	Log       []string
	ErrorText string
}

// PushAggregator collects the progress log of a push run.
type PushAggregator struct {
	log  []string
	errs []string
}

// NewPushAggregator returns an aggregator for a push invocation.
func NewPushAggregator() *PushAggregator {
	return &PushAggregator{}
}

func (a *PushAggregator) Accept(msg Message) {
	switch p := msg.Payload.(type) {
	case UI:
		if p.Category == "error" {
			a.errs = append(a.errs, p.Text)
			return
		}
		a.log = append(a.log, p.Text)
	case ErrorMessage:
		a.errs = append(a.errs, p.Text)
	}
}

func (a *PushAggregator) Finalize(exitStatus int, combined string, decodeErrors []DecodeError) Output {
	out := &PushOutput{
		Result: newResult(exitStatus, combined, decodeErrors, len(a.errs) == 0),
		Log:    a.log,
	}
	if len(a.errs) > 0 {
		out.ErrorText = a.errs[0]
		for _, e := range a.errs[1:] {
			out.ErrorText += "\n" + e
		}
	}
	return out
}

// FixOutput is the result of a fix run. On success Template holds the
// rewritten template text verbatim; on failure ErrorText holds the tool's
// error output instead.
type FixOutput struct {
	Result
	Template  string
	ErrorText string
}

// FixAggregator captures the rewritten template from a fix run. Fix emits no
// machine-readable records; everything of interest is the raw output.
type FixAggregator struct{}

// NewFixAggregator returns an aggregator for a fix invocation.
func NewFixAggregator() *FixAggregator {
	return &FixAggregator{}
}

func (a *FixAggregator) Accept(msg Message) {}

func (a *FixAggregator) Finalize(exitStatus int, combined string, decodeErrors []DecodeError) Output {
	out := &FixOutput{Result: newResult(exitStatus, combined, decodeErrors, true)}
	if exitStatus == 0 {
		out.Template = combined
	} else {
		out.ErrorText = combined
	}
	return out
}

// InspectOutput is the result of an inspect run: the names the template
// declares. Inspect reports structure, it does not build anything.
type InspectOutput struct {
	Result
	Variables    []string
	Builders     []string
	Provisioners []string
}

// InspectAggregator collects the structural messages of an inspect run.
type InspectAggregator struct {
	variables    []string
	builders     []string
	provisioners []string
}

// NewInspectAggregator returns an aggregator for an inspect invocation.
func NewInspectAggregator() *InspectAggregator {
	return &InspectAggregator{}
}

func (a *InspectAggregator) Accept(msg Message) {
	switch p := msg.Payload.(type) {
	case TemplateVariable:
		a.variables = append(a.variables, p.Name)
	case TemplateBuilder:
		a.builders = append(a.builders, p.Name)
	case TemplateProvisioner:
		a.provisioners = append(a.provisioners, p.Name)
	}
}

func (a *InspectAggregator) Finalize(exitStatus int, combined string, decodeErrors []DecodeError) Output {
	return &InspectOutput{
		Result:       newResult(exitStatus, combined, decodeErrors, true),
		Variables:    a.variables,
		Builders:     a.builders,
		Provisioners: a.provisioners,
	}
}

// VersionOutput is the result of a version run.
type VersionOutput struct {
	Result
	Version string
}

// VersionAggregator expects a single version message and degrades to
// UnknownVersion when the stream ends without one.
type VersionAggregator struct {
	version string
}

// NewVersionAggregator returns an aggregator for a version invocation.
func NewVersionAggregator() *VersionAggregator {
	return &VersionAggregator{}
}

func (a *VersionAggregator) Accept(msg Message) {
	if p, ok := msg.Payload.(Version); ok && a.version == "" {
		a.version = p.Version
	}
}

func (a *VersionAggregator) Finalize(exitStatus int, combined string, decodeErrors []DecodeError) Output {
	version := a.version
	if version == "" {
		version = UnknownVersion
	}
	return &VersionOutput{
		Result:  newResult(exitStatus, combined, decodeErrors, true),
		Version: version,
	}
}
