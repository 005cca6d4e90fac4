package panel

// Display texts.
const (
	TextMenuChange = "+ : Change Pass"
	TextMenuOpen   = "- : Open Door"

	TextEnterPassword = "Enter Password:"
	TextEnterNew      = "Enter New Pass:"
	TextEnterAgain    = "Enter Pass again:"
	TextPasswordSet   = "Password is set"
	TextWrongPassword = "Wrong Password"

	TextDoorIs       = "Door is"
	TextUnlocking    = "Unlocking"
	TextDoorOpen     = "Door is open"
	TextDoorLocking  = "Door is locking"
	TextSystemLocked = "System is Locked"
	TextCatchThief   = "catch thief!!!"
)

// MaskChar is echoed for each entered digit.
const MaskChar = '*'
