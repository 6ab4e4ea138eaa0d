// Package domain holds the typed record shapes of the dashboard's four
// areas and the bundle of collection facades the CLI works through. The
// shapes are deliberately thin: field validation lives with the caller, the
// data layer only moves records.
package domain

// Backend table names.
const (
	TableConcursos  = "concursos"
	TableAtividades = "atividades"
	TableTransacoes = "transacoes"
	TableRefeicoes  = "refeicoes"
)

// Concurso is a public service exam the user is tracking.
type Concurso struct {
	ID        string `json:"id,omitempty"`
	Owner     string `json:"user_id,omitempty"`
	Titulo    string `json:"titulo"`
	Orgao     string `json:"orgao,omitempty"`
	Banca     string `json:"banca,omitempty"`
	DataProva string `json:"data_prova,omitempty"`
	Status    string `json:"status,omitempty"`
}

// Atividade is one study activity, usually tied to an exam subject.
type Atividade struct {
	ID        string `json:"id,omitempty"`
	Owner     string `json:"user_id,omitempty"`
	Titulo    string `json:"titulo"`
	Materia   string `json:"materia,omitempty"`
	Concluida bool   `json:"concluida"`
	Data      string `json:"data,omitempty"`
}

// Transacao is a financial movement, positive for income and negative for
// expenses.
type Transacao struct {
	ID        string  `json:"id,omitempty"`
	Owner     string  `json:"user_id,omitempty"`
	Descricao string  `json:"descricao"`
	Valor     float64 `json:"valor"`
	Categoria string  `json:"categoria,omitempty"`
	Data      string  `json:"data,omitempty"`
}

// Refeicao is one logged meal.
type Refeicao struct {
	ID        string  `json:"id,omitempty"`
	Owner     string  `json:"user_id,omitempty"`
	Descricao string  `json:"descricao"`
	Calorias  float64 `json:"calorias,omitempty"`
	Data      string  `json:"data,omitempty"`
}
