package domain

// RefusalSentence is the exact reply the answer model is instructed to give
// when the retrieved passages do not contain the answer.
const RefusalSentence = "I don't have enough information in the scholarship documents to answer that question."
