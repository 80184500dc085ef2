package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/meghashyamc/contextview/models"
	"github.com/meghashyamc/contextview/services/graph"
	"github.com/meghashyamc/contextview/services/health"
	"github.com/meghashyamc/contextview/services/maps"
	"github.com/pterm/pterm"
	"gopkg.in/yaml.v3"
)

const (
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

type printer struct {
	w      io.Writer
	format string
}

// newPrinter picks table output for terminals and JSON for pipes unless format is set.
func newPrinter(w io.Writer, format string) (*printer, error) {
	switch format {
	case "":
		format = formatJSON
		if f, ok := w.(*os.File); ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())) {
			format = formatTable
		}
	case formatTable, formatJSON, formatYAML:
	default:
		return nil, fmt.Errorf("unknown output format %q, expected table, json or yaml", format)
	}
	return &printer{w: w, format: format}, nil
}

// structured writes v as JSON or YAML. It reports false for table output.
func (p *printer) structured(v any) (bool, error) {
	switch p.format {
	case formatJSON:
		encoder := json.NewEncoder(p.w)
		encoder.SetIndent("", "  ")
		return true, encoder.Encode(v)
	case formatYAML:
		data, err := yaml.Marshal(v)
		if err != nil {
			return true, err
		}
		_, err = p.w.Write(data)
		return true, err
	}
	return false, nil
}

func (p *printer) table(data pterm.TableData) error {
	return pterm.DefaultTable.WithHasHeader().WithWriter(p.w).WithData(data).Render()
}

func (p *printer) searchResults(results []models.SearchResult) error {
	if done, err := p.structured(results); done {
		return err
	}
	if len(results) == 0 {
		_, err := fmt.Fprintln(p.w, "No results")
		return err
	}

	data := pterm.TableData{{"Score", "Kind", "File", "Tags", "Caption"}}
	for _, result := range results {
		data = append(data, []string{
			fmt.Sprintf("%d%%", result.SimilarityScore),
			string(result.Kind),
			result.FilePath,
			strings.Join(result.Tags, ", "),
			result.UserCaption,
		})
	}
	return p.table(data)
}

func (p *printer) graph(view graph.View) error {
	if done, err := p.structured(view.Graph); done {
		return err
	}
	if view.Graph == nil || len(view.EdgeLabels) == 0 {
		_, err := fmt.Fprintln(p.w, "No relationships")
		return err
	}

	data := pterm.TableData{{"From", "Relation", "To"}}
	for _, edge := range view.EdgeLabels {
		data = append(data, []string{edge.FromLabel, edge.Label, edge.ToLabel})
	}
	return p.table(data)
}

func (p *printer) mindMaps(mindMaps []models.MindMap) error {
	if done, err := p.structured(mindMaps); done {
		return err
	}

	data := pterm.TableData{{"ID", "Name", "Created"}}
	for _, mindMap := range mindMaps {
		created := ""
		if mindMap.CreatedAt != nil {
			created = mindMap.CreatedAt.Format("2006-01-02 15:04")
		}
		data = append(data, []string{strconv.Itoa(mindMap.ID), mindMap.Name, created})
	}
	return p.table(data)
}

func (p *printer) mapData(view maps.EditorView) error {
	if done, err := p.structured(view.MapData); done {
		return err
	}

	nodes := pterm.TableData{{"Node", "Label", "Type", "Position"}}
	for _, node := range view.MapData.Nodes {
		nodes = append(nodes, []string{
			node.ID,
			node.Label,
			string(node.Type),
			fmt.Sprintf("%g,%g", node.Position.X, node.Position.Y),
		})
	}
	if _, err := fmt.Fprintf(p.w, "%s\n", view.MapData.Map.Name); err != nil {
		return err
	}
	if err := p.table(nodes); err != nil {
		return err
	}
	if len(view.EdgeLabels) == 0 {
		return nil
	}

	edges := pterm.TableData{{"Edge", "From", "Label", "To"}}
	for _, edge := range view.EdgeLabels {
		edges = append(edges, []string{edge.EdgeID, edge.FromLabel, edge.Label, edge.ToLabel})
	}
	return p.table(edges)
}

func (p *printer) status(response models.StatusResponse) error {
	if done, err := p.structured(response); done {
		return err
	}
	_, err := fmt.Fprintf(p.w, "%s: %s\n", response.Status, response.Message)
	return err
}

func (p *printer) health(view health.View) error {
	if done, err := p.structured(view); done {
		return err
	}

	data := pterm.TableData{{"Status", "Service", "Mode", "Error"}}
	row := []string{string(view.Status), "", "", view.Error}
	if view.Health != nil {
		row[1], row[2] = view.Health.Service, view.Health.Mode
	}
	return p.table(append(data, row))
}
