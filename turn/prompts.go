package turn

import "fmt"

const defaultGradePrompt = `You are a grader assessing relevance of a retrieved document to a user question.
Here is the retrieved document:

%s

Here is the user question: %s
If the document contains keyword(s) or semantic meaning related to the user question, grade it as relevant.
Give a binary score 'yes' or 'no' to indicate whether the document is relevant to the question. Answer with the single word only.`

const defaultRewritePrompt = `Look at the input and try to reason about the underlying semantic intent / meaning.
Here is the initial question:
-------
%s
-------
Formulate an improved question:`

const defaultAnswerPrompt = `You are an assistant for question-answering tasks over the user's financial data.
Use the following pieces of retrieved context to answer the question. If you don't know the answer, just say that you don't know.
Use three sentences maximum and keep the answer concise.
Question: %s
Context: %s
Answer:`

func gradePrompt(template, question, context string) string {
	return fmt.Sprintf(template, context, question)
}

func rewritePrompt(template, question string) string {
	return fmt.Sprintf(template, question)
}

func answerPrompt(template, question, context string) string {
	return fmt.Sprintf(template, question, context)
}
