package domain

// Rank is a member's patente in the club hierarchy, ordered from lowest to
// highest. The order decides who pays dues: aluno is never billed, everyone
// from soldado up is.
type Rank string

const (
	RankAluno      Rank = "aluno"
	RankSoldado    Rank = "soldado"
	RankCabo       Rank = "cabo"
	RankSargento   Rank = "sargento"
	RankTenente    Rank = "tenente"
	RankCapitao    Rank = "capitao"
	RankMajor      Rank = "major"
	RankCoronel    Rank = "coronel"
	RankComandante Rank = "comandante"
	RankAdmin      Rank = "admin"
)

var rankOrder = map[Rank]int{
	RankAluno:      0,
	RankSoldado:    1,
	RankCabo:       2,
	RankSargento:   3,
	RankTenente:    4,
	RankCapitao:    5,
	RankMajor:      6,
	RankCoronel:    7,
	RankComandante: 8,
	RankAdmin:      9,
}

// IsValid reports whether the rank is one of the known patentes.
func (r Rank) IsValid() bool {
	_, ok := rankOrder[r]
	return ok
}

// AtLeast reports whether r sits at or above other in the hierarchy.
// Unknown ranks never outrank anything.
func (r Rank) AtLeast(other Rank) bool {
	ri, ok := rankOrder[r]
	if !ok {
		return false
	}
	oi, ok := rankOrder[other]
	if !ok {
		return false
	}
	return ri >= oi
}

// IsPaymentEligible reports whether members of this rank owe recurring dues.
func (r Rank) IsPaymentEligible() bool {
	return r.AtLeast(RankSoldado)
}

// EligibleRanks returns every rank that owes dues. Used by reporting to
// count the eligible population.
func EligibleRanks() []Rank {
	ranks := make([]Rank, 0, len(rankOrder)-1)
	for r := range rankOrder {
		if r.IsPaymentEligible() {
			ranks = append(ranks, r)
		}
	}
	return ranks
}
