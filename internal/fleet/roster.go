package fleet

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

const (
	rosterPathRequiredMessageConstant       = "roster file path must be provided"
	rosterReadErrorTemplateConstant         = "failed to read roster file %s: %w"
	rosterParseErrorTemplateConstant        = "failed to parse roster file %s: %w"
	rosterInvalidNameErrorTemplateConstant  = "roster file %s: %w"
	rosterUnknownSimulationTemplateConstant = "roster file %s lists simulation %q outside the repository list"
	rosterDuplicateEntryTemplateConstant    = "roster file %s lists %q more than once"
	rosterEmptyRepositoriesTemplateConstant = "roster file %s declares no repositories"
)

// ErrRosterPathRequired indicates the roster file path option was empty.
var ErrRosterPathRequired = errors.New(rosterPathRequiredMessageConstant)

// rosterDocument mirrors the on-disk roster file layout.
type rosterDocument struct {
	Repositories []string `yaml:"repositories"`
	Simulations  []string `yaml:"simulations"`
}

// Roster holds the ordered fleet repository list and its simulation subset.
// It loads once at construction and reloads on explicit request; every other
// component treats it as read-only input.
type Roster struct {
	filePath     string
	mutex        sync.RWMutex
	repositories []RepositoryName
	simulations  []RepositoryName
}

// NewRoster loads the roster file and validates every entry.
func NewRoster(filePath string) (*Roster, error) {
	if len(filePath) == 0 {
		return nil, ErrRosterPathRequired
	}

	roster := &Roster{filePath: filePath}
	if reloadError := roster.Reload(); reloadError != nil {
		return nil, reloadError
	}
	return roster, nil
}

// Reload re-reads the roster file, replacing the lists wholesale on success
// and leaving the previous lists untouched on any failure.
func (roster *Roster) Reload() error {
	fileContents, readError := os.ReadFile(roster.filePath)
	if readError != nil {
		return fmt.Errorf(rosterReadErrorTemplateConstant, roster.filePath, readError)
	}

	var document rosterDocument
	if unmarshalError := yaml.Unmarshal(fileContents, &document); unmarshalError != nil {
		return fmt.Errorf(rosterParseErrorTemplateConstant, roster.filePath, unmarshalError)
	}

	if len(document.Repositories) == 0 {
		return fmt.Errorf(rosterEmptyRepositoriesTemplateConstant, roster.filePath)
	}

	repositories, repositoriesError := roster.parseNames(document.Repositories)
	if repositoriesError != nil {
		return repositoriesError
	}

	simulations, simulationsError := roster.parseNames(document.Simulations)
	if simulationsError != nil {
		return simulationsError
	}

	repositoryMembership := make(map[RepositoryName]struct{}, len(repositories))
	for _, repositoryName := range repositories {
		repositoryMembership[repositoryName] = struct{}{}
	}
	for _, simulationName := range simulations {
		if _, listed := repositoryMembership[simulationName]; !listed {
			return fmt.Errorf(rosterUnknownSimulationTemplateConstant, roster.filePath, simulationName.String())
		}
	}

	roster.mutex.Lock()
	roster.repositories = repositories
	roster.simulations = simulations
	roster.mutex.Unlock()
	return nil
}

func (roster *Roster) parseNames(rawNames []string) ([]RepositoryName, error) {
	parsedNames := make([]RepositoryName, 0, len(rawNames))
	seenNames := make(map[RepositoryName]struct{}, len(rawNames))
	for _, rawName := range rawNames {
		parsedName, parseError := ParseRepositoryName(rawName)
		if parseError != nil {
			return nil, fmt.Errorf(rosterInvalidNameErrorTemplateConstant, roster.filePath, parseError)
		}
		if _, duplicate := seenNames[parsedName]; duplicate {
			return nil, fmt.Errorf(rosterDuplicateEntryTemplateConstant, roster.filePath, parsedName.String())
		}
		seenNames[parsedName] = struct{}{}
		parsedNames = append(parsedNames, parsedName)
	}
	return parsedNames, nil
}

// All returns the full ordered repository list.
func (roster *Roster) All() []RepositoryName {
	roster.mutex.RLock()
	defer roster.mutex.RUnlock()
	return append([]RepositoryName{}, roster.repositories...)
}

// Simulations returns the ordered simulation subset.
func (roster *Roster) Simulations() []RepositoryName {
	roster.mutex.RLock()
	defer roster.mutex.RUnlock()
	return append([]RepositoryName{}, roster.simulations...)
}

// Contains reports whether the repository appears in the full list.
func (roster *Roster) Contains(name RepositoryName) bool {
	roster.mutex.RLock()
	defer roster.mutex.RUnlock()
	for _, repositoryName := range roster.repositories {
		if repositoryName == name {
			return true
		}
	}
	return false
}

// ContainsSimulation reports whether the repository appears in the simulation subset.
func (roster *Roster) ContainsSimulation(name RepositoryName) bool {
	roster.mutex.RLock()
	defer roster.mutex.RUnlock()
	for _, simulationName := range roster.simulations {
		if simulationName == name {
			return true
		}
	}
	return false
}
