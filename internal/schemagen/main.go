// Command schemagen writes the JSON schema of the configuration file. It is
// run by go generate from the directory of the configs package.
package main

import (
	"flag"
	"log"
	"os"

	"github.com/macropower/resc/api/v1beta1/configs"
	"github.com/macropower/resc/pkg/yaml"
)

var outFile = flag.String("o", "schema.json", "Output file for the generated schema")

func main() {
	flag.Parse()

	gen := yaml.NewSchemaGenerator(configs.New(),
		"github.com/macropower/resc/api/v1beta1/configs", ".",
	)
	jsData, err := gen.Generate()
	if err != nil {
		log.Fatalf("generate JSON schema: %v", err)
	}

	err = os.WriteFile(*outFile, jsData, 0o600)
	if err != nil {
		log.Fatalf("write schema file: %v", err)
	}
}
