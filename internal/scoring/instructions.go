package scoring

import (
	"fmt"
	"strings"
)

// ResponseFormat is the JSON shape the scorer is asked to return.
const ResponseFormat = `interface Feedback {
  overallScore: number; // max 100
  ATS: {
    score: number; // rate based on ATS suitability
    tips: string[]; // give 3-4 tips
  };
  toneAndStyle: {
    score: number; // max 100
    tips: { type: "good" | "improve"; tip: string; explanation: string }[]; // give 3-4 tips
  };
  content: {
    score: number; // max 100
    tips: { type: "good" | "improve"; tip: string; explanation: string }[]; // give 3-4 tips
  };
  structure: {
    score: number; // max 100
    tips: { type: "good" | "improve"; tip: string; explanation: string }[]; // give 3-4 tips
  };
  skills: {
    score: number; // max 100
    tips: { type: "good" | "improve"; tip: string; explanation: string }[]; // give 3-4 tips
  };
}`

// PrepareInstructions builds the scorer instruction payload for a job.
func PrepareInstructions(jobTitle, jobDescription string) string {
	var b strings.Builder
	b.WriteString("You are an expert in ATS (Applicant Tracking System) and resume analysis.\n")
	b.WriteString("Please analyze and rate this resume and suggest how to improve it.\n")
	b.WriteString("The rating can be low if the resume is bad.\n")
	b.WriteString("Be thorough and detailed. Don't be afraid to point out any mistakes or areas for improvement.\n")
	b.WriteString("If there is a lot to improve, don't hesitate to give low scores. This is to help the user to improve their resume.\n")
	b.WriteString("If available, use the job description for the job user is applying to to give more detailed feedback.\n")
	fmt.Fprintf(&b, "The job title is: %s\n", strings.TrimSpace(jobTitle))
	fmt.Fprintf(&b, "The job description is: %s\n", strings.TrimSpace(jobDescription))
	fmt.Fprintf(&b, "Provide the feedback using the following format:\n%s\n", ResponseFormat)
	b.WriteString("Return the analysis as a JSON object, without any other text and without the backticks.\n")
	b.WriteString("Do not include any other text or comments.")
	return b.String()
}
