package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/covenanthq/covenant/internal/compiler"
)

// LoadMode controls how errors are handled during bundle loading.
type LoadMode int

const (
	// LoadModeFailFast stops on the first error encountered.
	LoadModeFailFast LoadMode = iota
	// LoadModeCollectAll collects all errors before returning.
	LoadModeCollectAll
)

// LoadResult contains the results of loading a covenant bundle from a
// directory of CUE files.
type LoadResult struct {
	Bundle    *compiler.Bundle
	CUEValue  cue.Value // The raw CUE value for additional processing
	FileCount int       // Number of CUE files found
}

// LoadError represents an error that occurred during bundle loading.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadBundle loads and compiles a covenant bundle from a directory.
// If mode is LoadModeFailFast, returns on first error.
// If mode is LoadModeCollectAll, collects all errors.
func LoadBundle(dir string, mode LoadMode) (*LoadResult, []error) {
	// Verify directory exists
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("specs directory not found: %s", dir)}}
	}
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing specs directory: %v", err)}}
	}
	if !info.IsDir() {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}}
	}

	// Find CUE files
	cueFiles, err := FindCUEFiles(dir)
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}}
	}
	if len(cueFiles) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}}
	}

	// Load CUE instances
	ctx := cuecontext.New()
	cfg := &load.Config{Dir: dir}
	instances := load.Instances([]string{"."}, cfg)
	if len(instances) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}}
	}

	inst := instances[0]
	if inst.Err != nil {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}}
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, []error{&LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}}
	}

	result := &LoadResult{
		CUEValue:  value,
		FileCount: len(cueFiles),
	}

	bundle, errs := compileBundleValue(value, mode)
	result.Bundle = bundle
	return result, errs
}

// compileBundleValue extracts the group and commitments from a built CUE
// value. In collect-all mode a bad commitment does not hide the errors in
// the ones after it; the group itself is load-bearing and stays fail-fast.
func compileBundleValue(value cue.Value, mode LoadMode) (*compiler.Bundle, []error) {
	var errs []error
	bundle := &compiler.Bundle{}

	groupVal := value.LookupPath(cue.ParsePath("group"))
	if !groupVal.Exists() {
		return bundle, []error{&LoadError{Code: ErrCodeGroupField, Message: "no group found in specs"}}
	}

	group, members, err := compiler.CompileGroup(groupVal)
	if err != nil {
		return bundle, []error{convertCompileError(err, "group")}
	}
	bundle.Group = group
	bundle.Members = members

	commitmentsVal := value.LookupPath(cue.ParsePath("commitments"))
	if commitmentsVal.Exists() {
		iter, iterErr := commitmentsVal.List()
		if iterErr != nil {
			errs = append(errs, &LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("iterating commitments: %v", iterErr)})
			return bundle, errs
		}
		for iter.Next() {
			c, compileErr := compiler.CompileCommitment(iter.Value())
			if compileErr != nil {
				errs = append(errs, convertCompileError(compileErr, "commitment"))
				if mode == LoadModeFailFast {
					return bundle, errs
				}
				continue
			}
			bundle.Commitments = append(bundle.Commitments, c)
		}
	}

	return bundle, errs
}

// FindCUEFiles walks the directory and returns all .cue file paths.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// convertCompileError converts a compiler error to a LoadError with position info.
func convertCompileError(err error, context string) *LoadError {
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    MapFieldToErrorCode(compileErr.Field),
			Message: compileErr.Message,
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{
		Code:    ErrCodeGeneric,
		Message: fmt.Sprintf("%s: %v", context, err),
	}
}

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeLoadFailed  = "E004" // CUE load failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE build failed
	ErrCodeStoreFailed = "E007" // Database open or write error

	// Compile errors by bundle section
	ErrCodeGroupField      = "E101" // Group struct missing or malformed
	ErrCodeMemberField     = "E102" // Member entry malformed
	ErrCodeCommitmentField = "E110" // Commitment struct malformed
	ErrCodeConditionField  = "E111" // Condition clause malformed
	ErrCodePromiseField    = "E112" // Promise clause malformed
	ErrCodeAmountField     = "E113" // Amount literal unparseable

	// Solve errors
	ErrCodeNoConvergence = "E120" // Iteration bound reached without a fixed point
)

// MapFieldToErrorCode maps a compiler error field to an error code.
func MapFieldToErrorCode(field string) string {
	switch {
	case field == "group" || strings.HasPrefix(field, "group."):
		if strings.Contains(field, "members") {
			return ErrCodeMemberField
		}
		return ErrCodeGroupField
	case strings.HasPrefix(field, "condition") || strings.Contains(field, ".when"):
		return ErrCodeConditionField
	case strings.HasPrefix(field, "promise") || strings.Contains(field, ".promise"):
		return ErrCodePromiseField
	case field == "amount" || strings.HasSuffix(field, ".amount"):
		return ErrCodeAmountField
	case strings.HasPrefix(field, "commitment"):
		return ErrCodeCommitmentField
	default:
		return ErrCodeGeneric
	}
}
