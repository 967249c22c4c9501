package main

import "strings"

const promptTemplate = `Based on the following text, extract the data needed to draw a chart. Return the data IN JSON FORMAT,
with exactly these keys: "labels" (an array of strings for the X axis labels) and "values" (an array of numbers for the Y axis values).
If the text contains no chart data, return an object with empty "labels" and "values".
Respond with the JSON object only.

Text:
{{TEXT}}

Example of a valid JSON response:
{
  "labels": ["Enero", "Febrero", "Marzo"],
  "values": [10, 25, 18]
}

Another example (no data):
{
  "labels": [],
  "values": []
}
`

// buildPrompt embeds the caller's text verbatim into the extraction template.
func buildPrompt(text string) string {
	return strings.Replace(promptTemplate, "{{TEXT}}", text, 1)
}
