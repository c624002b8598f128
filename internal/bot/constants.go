package bot

const (
	// ProtectionCommandName is the root slash command for moderators.
	ProtectionCommandName = "protection"

	SubcommandLockdown   = "lockdown"
	SubcommandLift       = "lift"
	SubcommandKickRecent = "kick-recent"
	SubcommandBanRecent  = "ban-recent"
	SubcommandDismiss    = "dismiss"
	SubcommandVerify     = "verify"
	SubcommandStats      = "stats"
	OptionCount          = "count"
	OptionMember         = "member"

	// VerifyButtonCustomID opens the challenge answer modal.
	VerifyButtonCustomID = "verify_start"
	// VerifyModalCustomID prefixes answer modals; the session ID follows
	// after a colon.
	VerifyModalCustomID = "verify_answer"
	// VerifyInputCustomID is the answer text input inside the modal.
	VerifyInputCustomID = "verify_input"
)
