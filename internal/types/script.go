package types

// ScriptSystemPrompt asks the model for a JSON array of scene narrations.
var ScriptSystemPrompt = `You write narration for short vertical videos.
Split the story into exactly %d scenes. Each scene is one or two short sentences
that can be read aloud in under eight seconds.

Return strictly a JSON array of strings, one string per scene, and nothing else.
Example: ["First scene narration.", "Second scene narration."]`
