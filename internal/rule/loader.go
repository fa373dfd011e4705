package rule

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
)

// Load reads every CUE file in dir and compiles it into a validated Set.
//
// Compile errors are collected across all rules so an operator sees the
// full damage in one run; the Set is only returned when there are none.
func Load(dir string) (*Set, []error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, []error{fmt.Errorf("rules directory %s: %w", dir, err)}
	}
	if !info.IsDir() {
		return nil, []error{fmt.Errorf("rules path %s is not a directory", dir)}
	}

	files, err := findCUEFiles(dir)
	if err != nil {
		return nil, []error{fmt.Errorf("scan rules directory: %w", err)}
	}
	if len(files) == 0 {
		return nil, []error{fmt.Errorf("no CUE files found in %s", dir)}
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, []error{fmt.Errorf("no CUE instances loaded from %s", dir)}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, []error{fmt.Errorf("loading CUE files: %w", inst.Err)}
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, []error{fmt.Errorf("building CUE value: %w", err)}
	}
	return FromValue(value)
}

// FromValue compiles a rule set out of an already-built CUE value. Split
// from Load so tests can compile inline CUE without touching the filesystem.
func FromValue(value cue.Value) (*Set, []error) {
	var errs []error

	opts, err := compileOptions(value.LookupPath(cue.ParsePath("options")))
	if err != nil {
		errs = append(errs, err)
	}

	var rules []Rule
	rulesVal := value.LookupPath(cue.ParsePath("rule"))
	if rulesVal.Exists() {
		iter, iterErr := rulesVal.Fields()
		if iterErr != nil {
			errs = append(errs, fmt.Errorf("iterating rules: %w", iterErr))
		} else {
			for iter.Next() {
				r, cerr := compileRule(iter.Selector().Unquoted(), iter.Value())
				if cerr != nil {
					errs = append(errs, cerr)
					continue
				}
				rules = append(rules, r)
			}
		}
	}
	if len(rules) == 0 && len(errs) == 0 {
		errs = append(errs, fmt.Errorf("configuration defines no rules"))
	}
	if len(errs) > 0 {
		return nil, errs
	}

	set, err := NewSet(opts, rules)
	if err != nil {
		return nil, []error{err}
	}
	return set, nil
}

func findCUEFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".cue") {
			continue
		}
		out = append(out, filepath.Join(dir, e.Name()))
	}
	return out, nil
}
