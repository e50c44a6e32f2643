package domain

import "github.com/shopspring/decimal"

// ─── Tiers ──────────────────────────────────────────────────────────────────

// Tier is a reputation band. The minimum threshold is inclusive.
type Tier struct {
	Key           string          `json:"key"`
	Name          string          `json:"name"`
	MinReputation int             `json:"min_reputation"`
	Multiplier    decimal.Decimal `json:"multiplier"`
	Color         string          `json:"color"`
	Icon          string          `json:"icon"`
	Benefits      []string        `json:"benefits"`
}

const (
	TierIniciante  = "INICIANTE"
	TierConfiavel  = "CONFIAVEL"
	TierLider      = "LIDER"
	TierEmbaixador = "EMBAIXADOR"
)

// Tiers returns the four tiers ordered by threshold. Each call returns a
// fresh copy so callers cannot mutate the registry.
func Tiers() []Tier {
	return []Tier{
		{
			Key: TierIniciante, Name: "Iniciante", MinReputation: 0,
			Multiplier: decimal.NewFromInt(1), Color: "#9E9E9E", Icon: "🌱",
			Benefits: []string{"Acesso a campanhas básicas", "Recompensas padrão"},
		},
		{
			Key: TierConfiavel, Name: "Confiável", MinReputation: 100,
			Multiplier: decimal.RequireFromString("1.05"), Color: "#2196F3", Icon: "⭐",
			Benefits: []string{"Acesso a todas as campanhas", "Recompensas padrão", "+5% bônus"},
		},
		{
			Key: TierLider, Name: "Líder", MinReputation: 300,
			Multiplier: decimal.RequireFromString("1.10"), Color: "#FF9800", Icon: "👑",
			Benefits: []string{"Campanhas exclusivas", "+10% bônus", "Convites antecipados"},
		},
		{
			Key: TierEmbaixador, Name: "Embaixador", MinReputation: 500,
			Multiplier: decimal.RequireFromString("1.20"), Color: "#9C27B0", Icon: "💎",
			Benefits: []string{"Todas as campanhas", "+20% bônus", "Moderação", "Recompensas premium"},
		},
	}
}

// ─── Reputation actions ─────────────────────────────────────────────────────

// Action is a symbolic reputation event. Callers pass actions, never raw
// numbers, so the point schedule stays in one place.
type Action string

const (
	ActionAnswerValidated     Action = "RESPOSTA_VALIDADA"
	ActionAnswerRejected      Action = "RESPOSTA_REJEITADA"
	ActionFirstCampaign       Action = "PRIMEIRA_CAMPANHA"
	ActionCampaignComplete    Action = "CAMPANHA_COMPLETA"
	ActionFastAnswer          Action = "RESPOSTA_RAPIDA"
	ActionDetailedAnswer      Action = "RESPOSTA_DETALHADA"
	ActionInviteAccepted      Action = "CONVITE_ACEITO"
	ActionShare               Action = "COMPARTILHAMENTO"
	ActionDailyLogin          Action = "LOGIN_DIARIO"
	ActionProfileComplete     Action = "PERFIL_COMPLETO"
	ActionPositiveReview      Action = "AVALIACAO_POSITIVA"
	ActionReportSubstantiated Action = "DENUNCIA_PROCEDENTE"
	ActionSpamDetected        Action = "SPAM_DETECTADO"
	ActionInactive30Days      Action = "INATIVIDADE_30_DIAS"

	// ActionCampaignSubmission tags the composite delta of one settled
	// submission. Its points are computed per submission, not looked up.
	ActionCampaignSubmission Action = "SUBMISSAO_CAMPANHA"
)

// ActionDef is one row of the point schedule.
type ActionDef struct {
	Action      Action `json:"action"`
	Points      int    `json:"points"`
	Description string `json:"description"`
}

// Actions returns the fixed point schedule.
func Actions() []ActionDef {
	return []ActionDef{
		{ActionAnswerValidated, 10, "Resposta validada"},
		{ActionAnswerRejected, -5, "Resposta rejeitada"},
		{ActionFirstCampaign, 20, "Primeira campanha completa"},
		{ActionCampaignComplete, 15, "Campanha completa"},
		{ActionFastAnswer, 5, "Resposta rápida (<2min)"},
		{ActionDetailedAnswer, 8, "Resposta detalhada (>100 chars)"},
		{ActionInviteAccepted, 25, "Amigo convidado participou"},
		{ActionShare, 5, "Compartilhou campanha"},
		{ActionDailyLogin, 2, "Login diário"},
		{ActionProfileComplete, 30, "Perfil 100% completo"},
		{ActionPositiveReview, 15, "Avaliação positiva de cliente"},
		{ActionReportSubstantiated, 10, "Denúncia procedente"},
		{ActionSpamDetected, -20, "Spam detectado"},
		{ActionInactive30Days, -10, "Inatividade >30 dias"},
	}
}

// Def looks the action up in the schedule.
func (a Action) Def() (ActionDef, bool) {
	for _, d := range Actions() {
		if d.Action == a {
			return d, true
		}
	}
	return ActionDef{}, false
}

// Points returns the scheduled points, 0 for unscheduled actions.
func (a Action) Points() int {
	d, _ := a.Def()
	return d.Points
}

// ─── Medals ─────────────────────────────────────────────────────────────────

// Rarity grades a medal.
type Rarity string

const (
	RarityCommon    Rarity = "comum"
	RarityRare      Rarity = "rara"
	RarityEpic      Rarity = "épica"
	RarityLegendary Rarity = "lendária"
)

// MedalStats is the per-user snapshot medal criteria are evaluated against.
type MedalStats struct {
	Seq                  int64 `json:"seq"`
	CampaignsCompleted   int   `json:"campaigns_completed"`
	DetailedAnswers      int   `json:"detailed_answers"`
	FastAnswers          int   `json:"fast_answers"`
	AcceptedInvites      int   `json:"accepted_invites"`
	SubstantiatedReports int   `json:"substantiated_reports"`
	StreakDays           int   `json:"streak_days"`
	ApprovalRate         int   `json:"approval_rate"`
}

// Medal is a badge with its unlock criterion.
type Medal struct {
	ID          string                `json:"id"`
	Name        string                `json:"name"`
	Description string                `json:"description"`
	Icon        string                `json:"icon"`
	Rarity      Rarity                `json:"rarity"`
	Criterion   func(MedalStats) bool `json:"-"`
}

// Medals returns the medal catalog in evaluation order.
func Medals() []Medal {
	return []Medal{
		{
			ID: "pioneiro", Name: "Pioneiro", Description: "Um dos primeiros 1000 usuários",
			Icon: "🚀", Rarity: RarityLegendary,
			Criterion: func(s MedalStats) bool { return s.Seq > 0 && s.Seq <= 1000 },
		},
		{
			ID: "maratonista", Name: "Maratonista", Description: "100 campanhas completas",
			Icon: "🏃", Rarity: RarityEpic,
			Criterion: func(s MedalStats) bool { return s.CampaignsCompleted >= 100 },
		},
		{
			ID: "influencer", Name: "Influencer", Description: "50 convites aceitos",
			Icon: "📢", Rarity: RarityRare,
			Criterion: func(s MedalStats) bool { return s.AcceptedInvites >= 50 },
		},
		{
			ID: "detalhista", Name: "Detalhista", Description: "500 respostas detalhadas",
			Icon: "📝", Rarity: RarityCommon,
			Criterion: func(s MedalStats) bool { return s.DetailedAnswers >= 500 },
		},
		{
			ID: "relampago", Name: "Relâmpago", Description: "100 respostas em <2min",
			Icon: "⚡", Rarity: RarityCommon,
			Criterion: func(s MedalStats) bool { return s.FastAnswers >= 100 },
		},
		{
			ID: "constante", Name: "Constante", Description: "30 dias consecutivos",
			Icon: "🔥", Rarity: RarityRare,
			Criterion: func(s MedalStats) bool { return s.StreakDays >= 30 },
		},
		{
			ID: "perfeito", Name: "Perfeito", Description: "100% de aprovação em 50 campanhas",
			Icon: "💯", Rarity: RarityEpic,
			Criterion: func(s MedalStats) bool { return s.ApprovalRate == 100 && s.CampaignsCompleted >= 50 },
		},
		{
			ID: "guardiao", Name: "Guardião", Description: "20 denúncias procedentes",
			Icon: "🛡️", Rarity: RarityRare,
			Criterion: func(s MedalStats) bool { return s.SubstantiatedReports >= 20 },
		},
	}
}
