package knowledge

// builtinNotes is general self-care guidance used when no knowledge file is
// configured.
var builtinNotes = []string{
	"Fever: a temperature above 38°C (100.4°F) is usually the body fighting an infection such as a cold or flu. Rest, drink plenty of fluids and consider paracetamol or ibuprofen if appropriate. See a doctor if the fever lasts more than three days, goes above 39.5°C, or comes with a stiff neck, rash or confusion.",
	"Headache: most headaches are tension-type and ease with rest, water, regular meals and over-the-counter pain relief. Get urgent help for a sudden severe headache, a headache after a head injury, or one with weakness, vision changes or trouble speaking.",
	"Cough: a cough after a cold often lingers for two to three weeks. Honey in warm water, fluids and rest can help. See a doctor if the cough lasts more than three weeks, you cough up blood, or you are short of breath.",
	"Sore throat: usually caused by a virus and gets better within a week. Gargling salt water, drinking fluids and pain relief help. See a doctor if swallowing is very difficult, there is drooling, or symptoms last longer than a week.",
	"Stomach upset, nausea, vomiting or diarrhea: sip water or oral rehydration solution often and eat bland food when you can. Seek care for signs of dehydration, blood in vomit or stool, severe abdominal pain, or symptoms lasting more than two days.",
	"Runny or blocked nose and sneezing: common cold symptoms usually clear within seven to ten days. Rest, fluids and saline nose drops help. Antibiotics do not treat colds.",
	"Back pain: most back pain improves within a few weeks. Stay gently active, use heat, and take pain relief if needed. Get urgent help for back pain with numbness around the groin, loss of bladder or bowel control, or leg weakness.",
	"Emergency signs: chest pain or pressure, trouble breathing, fainting, sudden weakness or numbness on one side, slurred speech, severe bleeding, or thoughts of self-harm need emergency services right away.",
}

// Builtin returns an index over the built-in guidance notes.
func Builtin(opts ...Option) *Store {
	return New(builtinNotes, opts...)
}
