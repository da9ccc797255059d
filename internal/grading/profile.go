package grading

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/noah-isme/sma-report-engine/internal/models"
)

// Profile is an institution's choice of band scales.
type Profile struct {
	SubjectScales map[models.InstitutionMode]BandScale
	OverallScale  BandScale
}

// DefaultProfile annotates secondary subjects with SecondaryBandScale,
// university subjects with GpaBandScale and every overall grade with
// SecondaryBandScale.
func DefaultProfile() Profile {
	return Profile{
		SubjectScales: map[models.InstitutionMode]BandScale{
			models.ModeSecondary:  SecondaryBandScale,
			models.ModeUniversity: GpaBandScale,
		},
		OverallScale: SecondaryBandScale,
	}
}

// SubjectScale returns the scale used for per-subject letter grades in mode.
func (p Profile) SubjectScale(mode models.InstitutionMode) BandScale {
	if scale, ok := p.SubjectScales[mode]; ok && len(scale.Bands) > 0 {
		return scale
	}
	return DefaultProfile().SubjectScales[mode]
}

// Overall returns the scale used for the report card's overall grade.
func (p Profile) Overall() BandScale {
	if len(p.OverallScale.Bands) == 0 {
		return SecondaryBandScale
	}
	return p.OverallScale
}

// ProfileSet resolves grading profiles by institution code.
type ProfileSet struct {
	profiles map[string]Profile
	fallback Profile
}

// NewProfileSet returns a set that only knows the default profile.
func NewProfileSet() *ProfileSet {
	return &ProfileSet{profiles: map[string]Profile{}, fallback: DefaultProfile()}
}

// For returns the profile registered for institutionCode or the default one.
func (s *ProfileSet) For(institutionCode string) Profile {
	if s == nil {
		return DefaultProfile()
	}
	if p, ok := s.profiles[strings.ToUpper(strings.TrimSpace(institutionCode))]; ok {
		return p
	}
	return s.fallback
}

// Len returns the number of institution specific profiles.
func (s *ProfileSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.profiles)
}

type profileFile struct {
	Default  *profileEntry           `yaml:"default"`
	Profiles map[string]profileEntry `yaml:"profiles"`
}

type profileEntry struct {
	SecondarySubjectScale  string `yaml:"secondary_subject_scale"`
	UniversitySubjectScale string `yaml:"university_subject_scale"`
	OverallScale           string `yaml:"overall_scale"`
}

// LoadProfiles reads grading profiles from a YAML file. An empty path yields
// the default-only set.
func LoadProfiles(path string) (*ProfileSet, error) {
	if strings.TrimSpace(path) == "" {
		return NewProfileSet(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read grading profiles: %w", err)
	}
	return ParseProfiles(data)
}

// ParseProfiles decodes a YAML profile document.
//
//	default:
//	  overall_scale: SECONDARY
//	profiles:
//	  UNI-01:
//	    university_subject_scale: GPA
//	    overall_scale: SECONDARY
func ParseProfiles(data []byte) (*ProfileSet, error) {
	var file profileFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode grading profiles: %w", err)
	}
	set := NewProfileSet()
	if file.Default != nil {
		p, err := file.Default.resolve(set.fallback)
		if err != nil {
			return nil, fmt.Errorf("default profile: %w", err)
		}
		set.fallback = p
	}
	for code, entry := range file.Profiles {
		p, err := entry.resolve(set.fallback)
		if err != nil {
			return nil, fmt.Errorf("profile %s: %w", code, err)
		}
		set.profiles[strings.ToUpper(strings.TrimSpace(code))] = p
	}
	return set, nil
}

func (e profileEntry) resolve(base Profile) (Profile, error) {
	p := Profile{
		SubjectScales: map[models.InstitutionMode]BandScale{
			models.ModeSecondary:  base.SubjectScale(models.ModeSecondary),
			models.ModeUniversity: base.SubjectScale(models.ModeUniversity),
		},
		OverallScale: base.Overall(),
	}
	if e.SecondarySubjectScale != "" {
		scale, ok := ScaleByName(e.SecondarySubjectScale)
		if !ok {
			return Profile{}, fmt.Errorf("unknown scale %q", e.SecondarySubjectScale)
		}
		p.SubjectScales[models.ModeSecondary] = scale
	}
	if e.UniversitySubjectScale != "" {
		scale, ok := ScaleByName(e.UniversitySubjectScale)
		if !ok {
			return Profile{}, fmt.Errorf("unknown scale %q", e.UniversitySubjectScale)
		}
		p.SubjectScales[models.ModeUniversity] = scale
	}
	if e.OverallScale != "" {
		scale, ok := ScaleByName(e.OverallScale)
		if !ok {
			return Profile{}, fmt.Errorf("unknown scale %q", e.OverallScale)
		}
		p.OverallScale = scale
	}
	return p, nil
}
