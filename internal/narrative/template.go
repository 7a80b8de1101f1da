package narrative

import (
	"fmt"
	"strings"

	"github.com/psicoclima/psicoclima-backend/internal/stats"
)

// The template generator is the availability backstop: fully deterministic,
// no external dependency, cannot fail. Given the same aggregates it always
// produces the same artifact.

// analysisTemplates holds the per-risk-level category analysis text.
// %s = display label, %.2f = average score.
var analysisTemplates = map[stats.RiskLevel]string{
	stats.RiskHigh: "A categoria %s apresenta risco elevado, com média de %.2f em 5. " +
		"Os resultados indicam uma percepção consistentemente negativa dos respondentes " +
		"e recomenda-se intervenção prioritária nesta dimensão.",
	stats.RiskMedium: "A categoria %s apresenta risco moderado, com média de %.2f em 5. " +
		"Há sinais de atenção que merecem acompanhamento e ações preventivas no médio prazo.",
	stats.RiskLow: "A categoria %s apresenta risco baixo, com média de %.2f em 5. " +
		"Os resultados são positivos e devem ser mantidos pelas práticas atuais.",
}

// recommendationsByLevel are the fixed recommendation lists appended per
// observed risk level. Order is stable so regenerated artifacts compare equal.
var recommendationsByLevel = map[stats.RiskLevel][]string{
	stats.RiskHigh: {
		"Priorizar as categorias de risco alto com planos de ação de curto prazo e responsáveis definidos.",
		"Realizar escutas qualitativas (grupos focais anônimos) nas dimensões críticas.",
	},
	stats.RiskMedium: {
		"Monitorar as categorias de risco moderado na próxima rodada de avaliação.",
		"Incluir as dimensões de atenção nas pautas de desenvolvimento de lideranças.",
	},
	stats.RiskLow: {
		"Manter e comunicar as práticas associadas às categorias bem avaliadas.",
	},
}

var baseRecommendations = []string{
	"Compartilhar os resultados agregados com as equipes, preservando o anonimato.",
	"Repetir a avaliação em até 6 meses para acompanhar a evolução dos indicadores.",
}

// templateReport builds the deterministic analytical report from the
// aggregates alone.
func (s *Service) templateReport(summary stats.Summary) Report {
	var high, medium, low []string
	analyses := make([]CategoryAnalysis, 0, len(summary.CategoryScores))

	for _, cs := range summary.CategoryScores {
		label := s.catalog.Get(cs.Category)
		analyses = append(analyses, CategoryAnalysis{
			Category:  cs.Category,
			Label:     label,
			RiskLevel: string(cs.RiskLevel),
			Average:   cs.Average,
			Analysis:  fmt.Sprintf(analysisTemplates[cs.RiskLevel], label, cs.Average),
		})
		switch cs.RiskLevel {
		case stats.RiskHigh:
			high = append(high, label)
		case stats.RiskMedium:
			medium = append(medium, label)
		default:
			low = append(low, label)
		}
	}

	executive := fmt.Sprintf(
		"A avaliação contou com %d participantes e taxa de conclusão de %.1f%%. "+
			"Das %d categorias analisadas, %d apresentam risco alto, %d risco moderado e %d risco baixo.",
		summary.TotalParticipants, summary.CompletionRate,
		len(summary.CategoryScores), len(high), len(medium), len(low),
	)
	if len(high) > 0 {
		executive += fmt.Sprintf(" As dimensões que exigem atenção imediata são: %s.", strings.Join(high, ", "))
	}

	recommendations := append([]string{}, baseRecommendations...)
	seen := map[stats.RiskLevel]bool{}
	for _, cs := range summary.CategoryScores {
		if !seen[cs.RiskLevel] {
			seen[cs.RiskLevel] = true
			recommendations = append(recommendations, recommendationsByLevel[cs.RiskLevel]...)
		}
	}

	priorities := make([]string, 0, len(high))
	for _, label := range high {
		priorities = append(priorities, fmt.Sprintf("Estruturar plano de ação para %s nos próximos 30 dias.", label))
	}
	if len(priorities) == 0 {
		priorities = append(priorities, "Manter o monitoramento contínuo dos indicadores de clima e risco psicossocial.")
	}

	conclusion := "Os resultados agregados desta avaliação devem orientar as próximas ações de gestão de pessoas. " +
		"Nenhum dado individual foi exposto na construção deste relatório."

	return Report{
		ExecutiveSummary:       executive,
		RiskAnalysis:           analyses,
		OverallRecommendations: recommendations,
		ActionPriorities:       priorities,
		Conclusion:             conclusion,
	}
}

// actionBlueprint is the fixed action shape stamped out per high-risk
// category by the template generator.
type actionBlueprint struct {
	title          string
	description    string
	timeline       string
	responsible    string
	expectedImpact string
}

var defaultActionBlueprints = []actionBlueprint{
	{
		title:          "Diagnóstico aprofundado de %s",
		description:    "Conduzir grupos focais anônimos e entrevistas estruturadas para entender as causas da avaliação negativa em %s.",
		timeline:       "30 dias",
		responsible:    "RH / Saúde Ocupacional",
		expectedImpact: "Causas raiz mapeadas e priorizadas para intervenção.",
	},
	{
		title:          "Plano de intervenção em %s",
		description:    "Definir e executar ações corretivas para %s com metas mensuráveis e acompanhamento quinzenal pela liderança.",
		timeline:       "60-90 dias",
		responsible:    "Liderança direta com apoio de RH",
		expectedImpact: "Melhoria perceptível do indicador na próxima rodada de avaliação.",
	},
}

// templateActionPlan stamps the fixed blueprints for each high-risk category.
func (s *Service) templateActionPlan(highRisk []string) ActionPlan {
	actions := make([]ActionItem, 0, len(highRisk)*len(defaultActionBlueprints))
	for _, cat := range highRisk {
		label := s.catalog.Get(cat)
		for _, bp := range defaultActionBlueprints {
			actions = append(actions, ActionItem{
				Priority:       "alta",
				Category:       cat,
				Title:          fmt.Sprintf(bp.title, label),
				Description:    fmt.Sprintf(bp.description, label),
				Timeline:       bp.timeline,
				Responsible:    bp.responsible,
				ExpectedImpact: bp.expectedImpact,
			})
		}
	}

	if len(actions) == 0 {
		// No high-risk categories supplied — emit a single maintenance action
		// so the artifact is never empty.
		actions = append(actions, ActionItem{
			Priority:       "baixa",
			Category:       "general",
			Title:          "Manutenção do monitoramento de clima",
			Description:    "Manter a rotina de avaliações periódicas e comunicação dos resultados agregados às equipes.",
			Timeline:       "contínuo",
			Responsible:    "RH",
			ExpectedImpact: "Detecção precoce de deterioração nos indicadores.",
		})
	}

	return ActionPlan{Actions: actions}
}
