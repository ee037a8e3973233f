package availability

// Defaults is the fallback configuration used when the settings store cannot
// be read. It is built once from config and passed to whoever needs it.
type Defaults struct {
	Window        ServiceWindow
	Policy        AdvanceNoticePolicy
	LookaheadDays int
}

// StandardDefaults mirrors the workshop's out-of-the-box service settings.
func StandardDefaults() Defaults {
	return Defaults{
		Window: ServiceWindow{
			Start:       MustClock("09:00"),
			End:         MustClock("17:00"),
			SlotMinutes: 30,
		},
		Policy:        AdvanceNoticePolicy{MinDaysAhead: 2},
		LookaheadDays: 30,
	}
}
