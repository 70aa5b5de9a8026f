package pipeline

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/fyrsmithlabs/marcopolo/internal/airlock"
)

var (
	// ErrAdmission indicates that at least one input document failed the
	// ASCII admission gate.
	ErrAdmission = errors.New("admission failed")

	// ErrNoTypedUnits indicates a POLO document without SRC, OPEN or PROP
	// units when the caller requires at least one.
	ErrNoTypedUnits = errors.New("polo document has no typed units")
)

// AdmissionError carries the admission report of every checked document,
// keyed by document name ("marco", "polo" or a file path).
type AdmissionError struct {
	Reports map[string]airlock.Report
}

// Error lists the rejected documents.
func (e *AdmissionError) Error() string {
	return fmt.Sprintf("%s: %s", ErrAdmission, strings.Join(e.Rejected(), ", "))
}

// Unwrap returns ErrAdmission.
func (e *AdmissionError) Unwrap() error {
	return ErrAdmission
}

// Rejected returns the sorted names of documents that failed admission.
func (e *AdmissionError) Rejected() []string {
	var names []string
	for name, r := range e.Reports {
		if !r.ASCIIOK {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}
