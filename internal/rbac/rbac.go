package rbac

type Role string
type Action string

const (
	RoleCitizen       Role = "citizen"
	RoleAdministrator Role = "administrator"
)

const (
	ActionComplaintCreate     Action = "complaint.create"
	ActionComplaintReadOwn    Action = "complaint.read_own"
	ActionComplaintReadAll    Action = "complaint.read_all"
	ActionComplaintTransition Action = "complaint.transition"
	ActionComplaintDeleteOwn  Action = "complaint.delete_own"
	ActionComplaintDeleteAny  Action = "complaint.delete_any"
	ActionFeedbackSubmit      Action = "feedback.submit"
	ActionFeedbackReadAll     Action = "feedback.read_all"
	ActionSentimentAnalyze    Action = "sentiment.analyze"
	ActionSummaryRead         Action = "summary.read"
)

// Can reports whether role is ever allowed to perform action. Record-level
// conditions (ownership, status) are checked by the complaint policy.
func Can(role Role, action Action) bool {
	switch role {
	case RoleAdministrator:
		return true
	case RoleCitizen:
		switch action {
		case ActionComplaintCreate, ActionComplaintReadOwn, ActionComplaintDeleteOwn,
			ActionFeedbackSubmit, ActionSentimentAnalyze:
			return true
		}
		return false
	default:
		return false
	}
}
