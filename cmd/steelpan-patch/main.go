package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/panyard/steelpan"
	"github.com/panyard/steelpan/cmd"
	"github.com/panyard/steelpan/engine"
	"github.com/panyard/steelpan/report"
	"github.com/panyard/steelpan/version"
)

func main() {
	help := flag.Bool("h", false, "Show help.")
	dump := flag.Bool("dump", false, "Write the built-in patch to standard output.")
	dumpConfig := flag.Bool("dump-config", false, "Write the default engine config to standard output.")
	describe := flag.Bool("describe", false, "Describe the patches instead of only validating them.")
	header := flag.Bool("header", false, "Write each patch as a C header next to the patch file.")
	templateDir := flag.String("templates", "", "Directory with patch.txt and patch.h templates to use instead of the built-in ones.")
	rate := flag.Int("rate", steelpan.DefaultStreamOptions().SampleRate, "Sample rate used for the description and the header.")
	versionFlag := flag.Bool("v", false, "Print version.")
	flag.Usage = printUsage
	flag.Parse()
	if *versionFlag {
		fmt.Println(version.String("steelpan-patch"))
		os.Exit(0)
	}
	if *dump {
		p := steelpan.DefaultPatch()
		out, err := p.Marshal()
		exitOnError(err)
		os.Stdout.Write(out)
		os.Exit(0)
	}
	if *dumpConfig {
		cfg := engine.DefaultConfig()
		out, err := cfg.Marshal()
		exitOnError(err)
		os.Stdout.Write(out)
		os.Exit(0)
	}
	if flag.NArg() == 0 || *help {
		flag.Usage()
		os.Exit(0)
	}
	var r *report.Reporter
	var err error
	if *templateDir != "" {
		r, err = report.NewFromTemplates(*templateDir)
	} else {
		r, err = report.New()
	}
	exitOnError(err)
	retval := 0
	for _, filename := range flag.Args() {
		if err := process(r, filename, *rate, *describe, *header); err != nil {
			fmt.Fprintf(os.Stderr, "%v: %v\n", filename, err)
			retval = 1
			continue
		}
		if !*describe {
			fmt.Printf("%v: ok\n", filename)
		}
	}
	os.Exit(retval)
}

func process(r *report.Reporter, filename string, sampleRate int, describe, header bool) error {
	patch, err := cmd.LoadPatchFile(filename)
	if err != nil {
		return err
	}
	if describe {
		text, err := r.Describe(patch, sampleRate)
		if err != nil {
			return err
		}
		fmt.Println(text)
	}
	if header {
		h, err := r.Header(patch, sampleRate)
		if err != nil {
			return err
		}
		name := strings.TrimSuffix(filename, filepath.Ext(filename)) + ".h"
		if err := os.WriteFile(name, []byte(h), 0644); err != nil {
			return fmt.Errorf("could not write file %v: %w", name, err)
		}
	}
	return nil
}

func exitOnError(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "Usage: %s [flags] [patch1.yml patch2.yml ...]\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "\nValidates steelpan patches.\n\nFlags:\n")
	flag.PrintDefaults()
}
