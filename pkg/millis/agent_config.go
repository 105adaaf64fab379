package millis

const (
	DefaultVoiceModel      = "eleven_turbo_v2_5"
	DefaultLLMModel        = "gpt-4o"
	DefaultLanguage        = "en-US"
	DefaultIdleTimeMs      = 30000
	DefaultInactivityReply = "I haven't heard from you in a while. Are you still there?"
)

type VoiceSettings struct {
	Provider string                 `json:"provider"`
	VoiceID  string                 `json:"voice_id"`
	Model    string                 `json:"model,omitempty"`
	Settings map[string]interface{} `json:"settings"`
}

type HistorySettings struct {
	HistoryMessageLimit    int `json:"history_message_limit"`
	HistoryToolResultLimit int `json:"history_tool_result_limit"`
}

type LLMSettings struct {
	Model           string          `json:"model"`
	Temperature     float64         `json:"temperature"`
	HistorySettings HistorySettings `json:"history_settings"`
}

type Interruption struct {
	Allowed                 bool `json:"allowed"`
	KeepInterruptionMessage bool `json:"keep_interruption_message"`
	// The platform spells this field with three s.
	FirstMessage bool `json:"first_messsage"`
}

type AutoFillResponses struct {
	ResponseGapThreshold int      `json:"response_gap_threshold"`
	Messages             []string `json:"messages"`
}

type TerminateCall struct {
	Enabled     bool     `json:"enabled"`
	Instruction string   `json:"instruction"`
	Messages    []string `json:"messages"`
}

type Voicemail struct {
	Action                  string `json:"action"`
	Message                 string `json:"message"`
	ContinueOnVoiceActivity bool   `json:"continue_on_voice_activity"`
}

type CallTransfer struct {
	Phone       string   `json:"phone"`
	Instruction string   `json:"instruction"`
	Messages    []string `json:"messages"`
}

type InactivityHandling struct {
	IdleTime int    `json:"idle_time"`
	Message  string `json:"message"`
}

type DTMFDial struct {
	Enabled     bool   `json:"enabled"`
	Instruction string `json:"instruction"`
}

type Flow struct {
	UserStartFirst     bool               `json:"user_start_first"`
	Interruption       Interruption       `json:"interruption"`
	ResponseDelay      int                `json:"response_delay"`
	AutoFillResponses  *AutoFillResponses `json:"auto_fill_responses,omitempty"`
	AgentTerminateCall TerminateCall      `json:"agent_terminate_call"`
	Voicemail          *Voicemail         `json:"voicemail,omitempty"`
	CallTransfer       CallTransfer       `json:"call_transfer"`
	InactivityHandling InactivityHandling `json:"inactivity_handling"`
	DTMFDial           DTMFDial           `json:"dtmf_dial"`
}

type SessionTimeout struct {
	MaxDuration int    `json:"max_duration"`
	MaxIdle     int    `json:"max_idle"`
	Message     string `json:"message"`
}

type PrivacySettings struct {
	OptOutDataCollection bool `json:"opt_out_data_collection"`
	DoNotCallDetection   bool `json:"do_not_call_detection"`
}

type CustomVocabulary struct {
	Keywords map[string]interface{} `json:"keywords"`
}

type SpeechToText struct {
	Provider     string `json:"provider"`
	Multilingual bool   `json:"multilingual"`
}

type CallSettings struct {
	EnableRecording bool `json:"enable_recording"`
}

// AgentConfig is the configuration blob the platform stores per agent.
type AgentConfig struct {
	Prompt             string                   `json:"prompt"`
	Voice              VoiceSettings            `json:"voice"`
	LLM                LLMSettings              `json:"llm"`
	Flow               Flow                     `json:"flow"`
	FirstMessage       string                   `json:"first_message"`
	Tools              []map[string]interface{} `json:"tools"`
	MillisFunctions    []map[string]interface{} `json:"millis_functions,omitempty"`
	AppFunctions       []map[string]interface{} `json:"app_functions,omitempty"`
	Language           string                   `json:"language"`
	VADThreshold       float64                  `json:"vad_threshold,omitempty"`
	SessionTimeout     *SessionTimeout          `json:"session_timeout,omitempty"`
	SessionDataWebhook string                   `json:"session_data_webhook,omitempty"`
	ExtraPromptWebhook string                   `json:"extra_prompt_webhook,omitempty"`
	PrivacySettings    PrivacySettings          `json:"privacy_settings"`
	CustomVocabulary   *CustomVocabulary        `json:"custom_vocabulary,omitempty"`
	SpeechToText       SpeechToText             `json:"speech_to_text"`
	CallSettings       CallSettings             `json:"call_settings"`
}

func defaultLLM(temperature float64) LLMSettings {
	return LLMSettings{
		Model:       DefaultLLMModel,
		Temperature: temperature,
		HistorySettings: HistorySettings{
			HistoryMessageLimit:    10,
			HistoryToolResultLimit: 5,
		},
	}
}

// NewAgentConfig is the full configuration a freshly created agent starts with.
func NewAgentConfig(provider, voiceID, model string) AgentConfig {
	if model == "" {
		model = DefaultVoiceModel
	}

	return AgentConfig{
		Voice: VoiceSettings{
			Provider: provider,
			VoiceID:  voiceID,
			Model:    model,
			Settings: map[string]interface{}{},
		},
		LLM: defaultLLM(0),
		Flow: Flow{
			Interruption: Interruption{Allowed: true, KeepInterruptionMessage: true, FirstMessage: true},
			AutoFillResponses: &AutoFillResponses{
				Messages: []string{"Um", "Okay"},
			},
			AgentTerminateCall: TerminateCall{
				Enabled:     true,
				Instruction: "End the call when appropriate",
				Messages:    []string{},
			},
			Voicemail: &Voicemail{
				Action:                  "hangup",
				ContinueOnVoiceActivity: true,
			},
			CallTransfer: CallTransfer{Messages: []string{}},
			InactivityHandling: InactivityHandling{
				IdleTime: DefaultIdleTimeMs,
				Message:  DefaultInactivityReply,
			},
		},
		Tools:           []map[string]interface{}{},
		MillisFunctions: []map[string]interface{}{},
		AppFunctions:    []map[string]interface{}{},
		Language:        DefaultLanguage,
		VADThreshold:    0.5,
		SessionTimeout: &SessionTimeout{
			MaxDuration: 3600000,
			MaxIdle:     300000,
			Message:     "Session timeout reached",
		},
		CustomVocabulary: &CustomVocabulary{Keywords: map[string]interface{}{}},
		SpeechToText:     SpeechToText{Provider: "deepgram", Multilingual: true},
		CallSettings:     CallSettings{EnableRecording: true},
	}
}

// AgentUpdate is the editable part of an agent. Nil pointers take the
// documented default.
type AgentUpdate struct {
	Prompt       string
	FirstMessage string
	Language     string

	VoiceProvider string
	VoiceID       string
	VoiceModel    string

	InterruptionAllowed *bool
	ResponseDelay       int
	IdleTime            int

	TerminateCall TerminateCall
	CallTransfer  CallTransfer
	DTMFDial      DTMFDial

	Tools              []map[string]interface{}
	SessionDataWebhook string
	ExtraPromptWebhook string
}

// Config rebuilds the platform configuration from an update.
func (u AgentUpdate) Config() AgentConfig {
	allowed := true
	if u.InterruptionAllowed != nil {
		allowed = *u.InterruptionAllowed
	}

	idle := u.IdleTime
	if idle <= 0 {
		idle = DefaultIdleTimeMs
	}

	language := u.Language
	if language == "" {
		language = DefaultLanguage
	}

	tools := u.Tools
	if tools == nil {
		tools = []map[string]interface{}{}
	}

	terminate := u.TerminateCall
	if terminate.Messages == nil {
		terminate.Messages = []string{}
	}
	transfer := u.CallTransfer
	if transfer.Messages == nil {
		transfer.Messages = []string{}
	}

	return AgentConfig{
		Prompt: u.Prompt,
		Voice: VoiceSettings{
			Provider: u.VoiceProvider,
			VoiceID:  u.VoiceID,
			Model:    u.VoiceModel,
			Settings: map[string]interface{}{},
		},
		LLM: defaultLLM(0.5),
		Flow: Flow{
			Interruption:       Interruption{Allowed: allowed, KeepInterruptionMessage: true, FirstMessage: true},
			ResponseDelay:      u.ResponseDelay,
			AgentTerminateCall: terminate,
			CallTransfer:       transfer,
			DTMFDial:           u.DTMFDial,
			InactivityHandling: InactivityHandling{
				IdleTime: idle,
				Message:  DefaultInactivityReply,
			},
		},
		FirstMessage:       u.FirstMessage,
		Tools:              tools,
		Language:           language,
		SessionDataWebhook: u.SessionDataWebhook,
		ExtraPromptWebhook: u.ExtraPromptWebhook,
		SpeechToText:       SpeechToText{Provider: "deepgram", Multilingual: true},
		CallSettings:       CallSettings{EnableRecording: true},
	}
}
