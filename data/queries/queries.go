package queries

import (
	"embed"
	"fmt"
)

//go:embed delete/*.sql select/*.sql
var Files embed.FS

// ^^^ the go:embed directive is used to embed the files in the queries package
// meaning on compile time it will convert the files to binary data and embed it in the queries package

type DeleteQueries struct {
	FactorReturnsByFactorId string
}

type SelectQueries struct {
	AllFactors           string
	FactorReturnsInRange string
	PortfolioById        string
}

type QueryHelperStruct struct {
	Delete DeleteQueries
	Select SelectQueries
}

var QueryHelper = QueryHelperStruct{
	Delete: DeleteQueries{
		FactorReturnsByFactorId: "delete/factor_returns_by_factor_id.sql",
	},
	Select: SelectQueries{
		AllFactors:           "select/all_factors.sql",
		FactorReturnsInRange: "select/factor_returns_in_range.sql",
		PortfolioById:        "select/portfolio_by_id.sql",
	},
}

func Get(path string) string {
	content, err := Files.ReadFile(path)
	if err != nil {
		panic(fmt.Errorf("error reading query file: %w", err))
	}

	return string(content)
}
