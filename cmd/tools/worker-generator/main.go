// cmd/tools/worker-generator/main.go
//
// worker-generator scaffolds a new worker package under
// internal/workers/<category>/<id>/ from its activity-registry entry.
// The generated files follow the same layout the existing matching
// workers use: config.go, models.go, validation.go, and handler.go.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/template"

	"studymatch-workers/pkg/registry"
)

type workerData struct {
	ID          string
	PackageName string
	TaskType    string
	Description string
	Category    string
	InputFields []fieldData
	Required    []string
}

type fieldData struct {
	GoName   string
	GoType   string
	JSONName string
}

func main() {
	id := flag.String("id", "", "Activity ID from the registry (e.g., find-matches)")
	registryPath := flag.String("registry", "configs/activity-registry.json", "Path to the activity registry")
	outDir := flag.String("out", "internal/workers", "Root directory for generated worker packages")
	force := flag.Bool("force", false, "Overwrite existing files")
	flag.Parse()

	if *id == "" {
		fmt.Println("Error: -id is required.")
		flag.Usage()
		os.Exit(1)
	}

	reg, err := registry.Load(*registryPath)
	if err != nil {
		fmt.Printf("Error loading registry: %v\n", err)
		os.Exit(1)
	}

	activity := reg.Find(*id)
	if activity == nil {
		fmt.Printf("Error: activity %s not found in %s\n", *id, *registryPath)
		os.Exit(1)
	}

	data := buildWorkerData(activity)
	targetDir := filepath.Join(*outDir, activity.Category, activity.ID)

	if err := os.MkdirAll(targetDir, 0755); err != nil {
		fmt.Printf("Error creating %s: %v\n", targetDir, err)
		os.Exit(1)
	}

	files := map[string]string{
		"config.go":     configTemplate,
		"models.go":     modelsTemplate,
		"validation.go": validationTemplate,
		"handler.go":    handlerTemplate,
	}

	for name, tmpl := range files {
		path := filepath.Join(targetDir, name)
		if !*force {
			if _, err := os.Stat(path); err == nil {
				fmt.Printf("Skipping %s (exists, use -force to overwrite)\n", path)
				continue
			}
		}
		if err := renderFile(path, name, tmpl, data); err != nil {
			fmt.Printf("Error writing %s: %v\n", path, err)
			os.Exit(1)
		}
		fmt.Printf("Wrote %s\n", path)
	}
}

func buildWorkerData(activity *registry.Activity) workerData {
	data := workerData{
		ID:          activity.ID,
		PackageName: strings.ReplaceAll(activity.ID, "-", ""),
		TaskType:    activity.TaskType,
		Description: activity.Description,
		Category:    activity.Category,
	}

	props := schemaProperties(activity.InputSchema)
	names := make([]string, 0, len(props))
	for name := range props {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		details, _ := props[name].(map[string]interface{})
		data.InputFields = append(data.InputFields, fieldData{
			GoName:   exportedName(name),
			GoType:   goType(details),
			JSONName: name,
		})
	}

	if req, ok := activity.InputSchema["required"].([]interface{}); ok {
		for _, r := range req {
			if s, ok := r.(string); ok {
				data.Required = append(data.Required, s)
			}
		}
	}

	return data
}

func schemaProperties(schema map[string]interface{}) map[string]interface{} {
	if props, ok := schema["properties"].(map[string]interface{}); ok {
		return props
	}
	return map[string]interface{}{}
}

func goType(details map[string]interface{}) string {
	t, _ := details["type"].(string)
	switch t {
	case "string":
		return "string"
	case "integer":
		return "int"
	case "number":
		return "float64"
	case "boolean":
		return "bool"
	case "array":
		return "[]interface{}"
	case "object":
		return "map[string]interface{}"
	default:
		return "interface{}"
	}
}

// exportedName turns a camelCase JSON property into an exported Go
// identifier, keeping common initialisms upper-cased.
func exportedName(prop string) string {
	if prop == "" {
		return prop
	}
	name := strings.ToUpper(prop[:1]) + prop[1:]
	for _, suffix := range []string{"Id", "Url", "Sms"} {
		if strings.HasSuffix(name, suffix) {
			name = strings.TrimSuffix(name, suffix) + strings.ToUpper(suffix)
		}
	}
	return name
}

func renderFile(path, name, tmplText string, data workerData) error {
	tmpl, err := template.New(name).Parse(tmplText)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return tmpl.Execute(f, data)
}

const configTemplate = `// internal/workers/{{ .Category }}/{{ .ID }}/config.go
package {{ .PackageName }}

import "time"

type Config struct {
	Timeout time.Duration
}

func DefaultConfig() *Config {
	return &Config{
		Timeout: 30 * time.Second,
	}
}
`

const modelsTemplate = `// internal/workers/{{ .Category }}/{{ .ID }}/models.go
package {{ .PackageName }}

type Input struct {
{{- range .InputFields }}
	{{ .GoName }} {{ .GoType }} ` + "`" + `json:"{{ .JSONName }}"` + "`" + `
{{- end }}
}

type Output struct {
	Success bool ` + "`" + `json:"success"` + "`" + `
}
`

const validationTemplate = `// internal/workers/{{ .Category }}/{{ .ID }}/validation.go
package {{ .PackageName }}

import "studymatch-workers/internal/common/validation"

func InputSchema() validation.JSONSchema {
	return validation.JSONSchema{
		Type: "object",
		Properties: map[string]validation.Property{
{{- range .InputFields }}
			"{{ .JSONName }}": {Type: "{{ if eq .GoType "string" }}string{{ else if eq .GoType "int" }}integer{{ else if eq .GoType "float64" }}number{{ else if eq .GoType "bool" }}boolean{{ else }}object{{ end }}"},
{{- end }}
		},
		Required:             []string{ {{- range $i, $r := .Required }}{{ if $i }}, {{ end }}"{{ $r }}"{{- end }} },
		AdditionalProperties: true,
	}
}
`

const handlerTemplate = `// internal/workers/{{ .Category }}/{{ .ID }}/handler.go
package {{ .PackageName }}

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	commonerrors "studymatch-workers/internal/common/errors"
	"studymatch-workers/internal/common/logger"
	"studymatch-workers/internal/common/metrics"
	"studymatch-workers/internal/common/validation"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

// {{ .Description }}
const (
	TaskType = "{{ .TaskType }}"
)

type Handler struct {
	config   *Config
	errorHnd *commonerrors.ErrorHandler
	logger   logger.Logger
}

func NewHandler(config *Config, log logger.Logger) *Handler {
	l := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:   config,
		errorHnd: commonerrors.NewErrorHandler(l),
		logger:   l,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	started := time.Now()
	metrics.WorkerJobsActive.WithLabelValues(TaskType).Inc()
	defer metrics.WorkerJobsActive.WithLabelValues(TaskType).Dec()

	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	if result := validation.ValidateRaw([]byte(job.Variables), InputSchema()); !result.Valid {
		h.failJob(ctx, client, job, commonerrors.NewInvalidOptionError(result.FirstError()))
		return
	}

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.failJob(ctx, client, job, commonerrors.NewInvalidOptionError(fmt.Sprintf("parse input: %v", err)))
		return
	}

	output, err := h.Execute(ctx, &input)
	if err != nil {
		h.failJob(ctx, client, job, err)
		return
	}

	h.completeJob(client, job, output)
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(started).Seconds())
}

// Execute runs the business logic. Fill this in.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return &Output{Success: true}, nil
}

func (h *Handler) completeJob(client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}
	if _, err = cmd.Send(context.Background()); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err,
		})
	}
}

func (h *Handler) failJob(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	code := "INTERNAL_ERROR"
	if stdErr, ok := err.(*commonerrors.StandardError); ok {
		code = string(stdErr.Code)
	}
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, code).Inc()
	h.errorHnd.HandleJobError(ctx, client, job, err)
}
`
