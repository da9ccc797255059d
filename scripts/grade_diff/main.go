// Command grade_diff fetches the same report cards from a baseline and a
// candidate deployment and lists every subject whose mark or grade moved.
// It is meant to be run before rolling out a new grading profile or rounding
// mode.
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type target struct {
	StudentID string `yaml:"student_id"`
	TermID    string `yaml:"term_id"`
	Critical  bool   `yaml:"critical"`
}

type targetFile struct {
	APIPrefix string   `yaml:"api_prefix"`
	Targets   []target `yaml:"targets"`
}

type subjectLine struct {
	SubjectID   string   `json:"subject_id"`
	SubjectCode string   `json:"subject_code"`
	FinalMark   float64  `json:"final_mark"`
	LetterGrade string   `json:"letter_grade"`
	GradePoints *float64 `json:"grade_points"`
}

type cardView struct {
	OverallAverage float64       `json:"overall_average"`
	OverallGrade   string        `json:"overall_grade"`
	GPA            *float64      `json:"gpa"`
	Subjects       []subjectLine `json:"subjects"`
}

type fetched struct {
	Status int
	Card   *cardView
}

type result struct {
	Target      target
	Baseline    fetched
	Candidate   fetched
	Differences []string
	Err         error
}

func main() {
	var (
		baseline    string
		candidate   string
		targetsPath string
		timeout     time.Duration
	)

	flag.StringVar(&baseline, "baseline", "http://localhost:8080", "Base URL of the deployment currently serving report cards")
	flag.StringVar(&candidate, "candidate", "http://localhost:8081", "Base URL of the deployment running the new grading configuration")
	flag.StringVar(&targetsPath, "targets", filepath.Join("scripts", "grade_diff", "targets.yaml"), "Path to YAML targets file")
	flag.DurationVar(&timeout, "timeout", 10*time.Second, "HTTP client timeout")
	flag.Parse()

	file, err := loadTargets(targetsPath)
	if err != nil {
		log.Fatalf("failed to load targets: %v", err)
	}

	client := &http.Client{Timeout: timeout}
	var (
		results  []result
		breaking int
		moved    int
	)
	for _, t := range file.Targets {
		res := compare(client, baseline, candidate, file.APIPrefix, t)
		if res.Err != nil || len(res.Differences) > 0 {
			if t.Critical {
				breaking++
			} else {
				moved++
			}
		}
		results = append(results, res)
	}

	printReport(os.Stdout, results)
	fmt.Printf("Critical cards changed: %d, other cards changed: %d\n", breaking, moved)
	if breaking > 0 {
		os.Exit(1)
	}
}

func loadTargets(path string) (*targetFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var file targetFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, err
	}
	if len(file.Targets) == 0 {
		return nil, fmt.Errorf("no targets defined in %s", path)
	}
	if strings.TrimSpace(file.APIPrefix) == "" {
		file.APIPrefix = "/api/v1"
	}
	return &file, nil
}

func compare(client *http.Client, baseline, candidate, prefix string, t target) result {
	res := result{Target: t}
	var err error
	if res.Baseline, err = fetchCard(client, baseline, prefix, t); err != nil {
		res.Err = fmt.Errorf("baseline: %w", err)
		return res
	}
	if res.Candidate, err = fetchCard(client, candidate, prefix, t); err != nil {
		res.Err = fmt.Errorf("candidate: %w", err)
		return res
	}
	if res.Baseline.Status != res.Candidate.Status {
		res.Differences = append(res.Differences, fmt.Sprintf("status %d -> %d", res.Baseline.Status, res.Candidate.Status))
		return res
	}
	res.Differences = diffCards(res.Baseline.Card, res.Candidate.Card)
	return res
}

func fetchCard(client *http.Client, base, prefix string, t target) (fetched, error) {
	if client == nil {
		return fetched{}, errors.New("nil client")
	}
	endpoint := strings.TrimRight(base, "/") + "/" + strings.Trim(prefix, "/") +
		"/report-cards/students/" + url.PathEscape(t.StudentID) + "?termId=" + url.QueryEscape(t.TermID)

	resp, err := client.Get(endpoint)
	if err != nil {
		return fetched{}, err
	}
	defer resp.Body.Close()

	out := fetched{Status: resp.StatusCode}
	if resp.StatusCode != http.StatusOK {
		return out, nil
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return out, fmt.Errorf("read body: %w", err)
	}
	card, err := decodeCard(body)
	if err != nil {
		return out, err
	}
	out.Card = card
	return out, nil
}

// decodeCard drops the envelope and every field that changes between two
// identical requests (generated_at, meta).
func decodeCard(body []byte) (*cardView, error) {
	var envelope struct {
		Data *cardView `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("decode report card: %w", err)
	}
	if envelope.Data == nil {
		return nil, errors.New("response carries no report card")
	}
	return envelope.Data, nil
}

func diffCards(a, b *cardView) []string {
	if a == nil || b == nil {
		if a == b {
			return nil
		}
		return []string{"report card missing on one side"}
	}
	var diffs []string
	if a.OverallAverage != b.OverallAverage {
		diffs = append(diffs, fmt.Sprintf("overall average %.2f -> %.2f", a.OverallAverage, b.OverallAverage))
	}
	if a.OverallGrade != b.OverallGrade {
		diffs = append(diffs, fmt.Sprintf("overall grade %s -> %s", a.OverallGrade, b.OverallGrade))
	}
	if formatPoints(a.GPA) != formatPoints(b.GPA) {
		diffs = append(diffs, fmt.Sprintf("gpa %s -> %s", formatPoints(a.GPA), formatPoints(b.GPA)))
	}

	left := indexSubjects(a.Subjects)
	right := indexSubjects(b.Subjects)
	keys := make([]string, 0, len(left)+len(right))
	for id := range left {
		keys = append(keys, id)
	}
	for id := range right {
		if _, ok := left[id]; !ok {
			keys = append(keys, id)
		}
	}
	sort.Strings(keys)

	for _, id := range keys {
		l, lok := left[id]
		r, rok := right[id]
		switch {
		case !lok:
			diffs = append(diffs, fmt.Sprintf("%s only on candidate", r.label()))
		case !rok:
			diffs = append(diffs, fmt.Sprintf("%s only on baseline", l.label()))
		case l.FinalMark != r.FinalMark || l.LetterGrade != r.LetterGrade || formatPoints(l.GradePoints) != formatPoints(r.GradePoints):
			diffs = append(diffs, fmt.Sprintf("%s %.2f %s (%s) -> %.2f %s (%s)",
				l.label(), l.FinalMark, l.LetterGrade, formatPoints(l.GradePoints),
				r.FinalMark, r.LetterGrade, formatPoints(r.GradePoints)))
		}
	}
	return diffs
}

func indexSubjects(lines []subjectLine) map[string]subjectLine {
	out := make(map[string]subjectLine, len(lines))
	for _, line := range lines {
		out[line.SubjectID] = line
	}
	return out
}

func (s subjectLine) label() string {
	if s.SubjectCode != "" {
		return s.SubjectCode
	}
	return s.SubjectID
}

func formatPoints(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f", *v)
}

func printReport(w io.Writer, results []result) {
	fmt.Fprintln(w, "Grade Diff Report")
	fmt.Fprintln(w, "=================")
	for _, res := range results {
		status := "SAME"
		if res.Err != nil {
			status = "ERROR"
		} else if len(res.Differences) > 0 {
			status = "CHANGED"
		}
		fmt.Fprintf(w, "[%s] student=%s term=%s critical=%t\n", status, res.Target.StudentID, res.Target.TermID, res.Target.Critical)
		if res.Err != nil {
			fmt.Fprintf(w, "  error: %v\n", res.Err)
			continue
		}
		for _, d := range res.Differences {
			fmt.Fprintf(w, "  %s\n", d)
		}
	}
}
